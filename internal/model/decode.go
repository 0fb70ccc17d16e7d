package model

import (
	"encoding/json"
	"math"
)

// UnmarshalJSON decodes a stored record field by field. Catalog files are
// edited by hand, so a field holding the wrong JSON type is read as its zero
// value instead of rejecting the whole record: a numeric id becomes its
// decimal text and a size written as "4.2 MB" becomes unknown. Only input
// that is not a JSON object is an error.
func (s *Song) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*s = Song{
		ID:           looseString(fields["id"]),
		Title:        looseString(fields["title"]),
		File:         looseString(fields["file"]),
		Cover:        looseString(fields["cover"]),
		Date:         looseString(fields["date"]),
		Size:         looseSize(fields["size"]),
		Genre:        looseString(fields["genre"]),
		AIModel:      looseString(fields["aiModel"]),
		DownloadName: looseString(fields["downloadName"]),
		MetadataPath: looseString(fields["metadataPath"]),
	}
	return nil
}

func looseString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var str string
	if json.Unmarshal(raw, &str) == nil {
		return str
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	return ""
}

func looseSize(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}
	var n json.Number
	if json.Unmarshal(raw, &n) != nil {
		return 0
	}
	if i, err := n.Int64(); err == nil {
		return max(i, 0)
	}
	f, err := n.Float64()
	if err != nil || f < 0 || f > math.MaxInt64 {
		return 0
	}
	return int64(f)
}
