package model

import (
	"bytes"
	"encoding/json"
	"errors"
)

// ErrNotArray 输入不是 JSON 数组
var ErrNotArray = errors.New("not a JSON array")

// DecodeItems 宽松解析条目数组：标量字段统一转成字符串，非对象元素得到空条目
func DecodeItems(raw json.RawMessage) ([]Item, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, ErrNotArray
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(elems))
	for _, e := range elems {
		var f map[string]json.RawMessage
		if isObject(e) {
			_ = json.Unmarshal(e, &f)
		}
		items = append(items, Item{
			Title:   flexString(f["title"]),
			URL:     flexString(f["url"]),
			Time:    flexString(f["time"]),
			Summary: flexString(f["summary"]),
			Image:   flexString(f["image"]),
			Source:  flexString(f["source"]),
			AI:      flexString(f["ai"]),
			Note:    flexString(f["note"]),
		})
	}
	return items, nil
}
