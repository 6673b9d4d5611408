package storage

import "os"

// DatabaseSizeBytes reports the on-disk footprint of the SQLite database at
// path, including the -wal and -shm sidecar files when present. A path that
// does not exist yet contributes 0.
func DatabaseSizeBytes(path string) (int64, error) {
	if path == "" {
		return 0, nil
	}
	var total int64
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, err
		}
		total += info.Size()
	}
	return total, nil
}
