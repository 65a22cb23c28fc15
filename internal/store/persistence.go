package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	apperrors "github.com/VIPHakim/netboost/internal/errors"
)

// readJSONFile decodes path into out. A missing file is not an error: the
// mirror simply starts empty.
func readJSONFile(path string, out any) error {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return apperrors.PersistenceError(fmt.Sprintf("reading %s", path), err)
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperrors.PersistenceError(fmt.Sprintf("decoding %s", path), err)
	}
	return nil
}

// writeJSONFile writes v to path via a temp file and rename so readers never
// observe a partially written mirror.
func writeJSONFile(path string, v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return apperrors.PersistenceError(fmt.Sprintf("encoding %s", path), err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, encoded, 0o644); err != nil {
		return apperrors.PersistenceError(fmt.Sprintf("writing %s", tmp), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return apperrors.PersistenceError(fmt.Sprintf("replacing %s", path), err)
	}
	return nil
}
