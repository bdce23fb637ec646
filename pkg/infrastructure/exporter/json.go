package exporter

import (
	"encoding/json"
	"io"

	"github.com/WangYihang/Catalog-Crawler/pkg/domain/entity"
)

// WriteJSON writes the canonical items as a pretty-printed array
func WriteJSON(w io.Writer, items []entity.CanonicalItem) error {
	if items == nil {
		items = []entity.CanonicalItem{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
