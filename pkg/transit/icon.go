package transit

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Sternrassler/transit-cache/pkg/cache"
	"github.com/Sternrassler/transit-cache/pkg/storage"
)

// LineIconHandler persists line pictograms in the line_icon table.
// Icons have no position.
type LineIconHandler struct {
	cache.NonSpatial[LineIcon]
}

var _ cache.EntryHandler[LineIcon] = (*LineIconHandler)(nil)

// NewLineIconHandler creates a line icon handler.
func NewLineIconHandler() *LineIconHandler {
	return &LineIconHandler{}
}

// TypeName implements cache.EntryHandler.
func (h *LineIconHandler) TypeName() string { return TypeLineIcon }

// Replace implements cache.EntryHandler.
func (h *LineIconHandler) Replace(ctx context.Context, q storage.Querier, id string, icon LineIcon) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO line_icon (line, color, mime_type, image) VALUES (?, ?, ?, ?)
		ON CONFLICT (line) DO UPDATE SET
			color = excluded.color,
			mime_type = excluded.mime_type,
			image = excluded.image`,
		id, icon.Color, icon.MimeType, icon.Image)
	return err
}

// Delete implements cache.EntryHandler.
func (h *LineIconHandler) Delete(ctx context.Context, q storage.Querier, id string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM line_icon WHERE line = ?`, id)
	return err
}

// LoadByID implements cache.EntryHandler.
func (h *LineIconHandler) LoadByID(ctx context.Context, q storage.Querier, id string) (LineIcon, bool, error) {
	var icon LineIcon
	err := q.QueryRowContext(ctx,
		`SELECT line, color, mime_type, image FROM line_icon WHERE line = ?`, id).
		Scan(&icon.Line, &icon.Color, &icon.MimeType, &icon.Image)
	if errors.Is(err, sql.ErrNoRows) {
		return LineIcon{}, false, nil
	}
	if err != nil {
		return LineIcon{}, false, err
	}
	return icon, true, nil
}
