package row

import (
	"context"
	"fmt"
)

// Populate copies every column of the handle's table, identifier included,
// from a relational snapshot into the cache with one hash write. Columns
// missing from the snapshot are written as null.
func Populate(ctx context.Context, h *Handle, snapshot map[string]any) error {
	fields := make(map[string]string, len(h.schema.Columns))
	for i := range h.schema.Columns {
		col := &h.schema.Columns[i]
		enc, err := h.encode(col, snapshot[col.Name])
		if err != nil {
			return fmt.Errorf("populate %s.%s: %w", h.schema.TableName, col.Name, err)
		}
		fields[col.Name] = enc
	}

	if err := h.store.HSet(ctx, h.key, fields); err != nil {
		return err
	}
	h.logger.Debug("row populated", "columns", len(fields))
	return nil
}
