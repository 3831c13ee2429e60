package syncgw

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime"
	"strings"
)

// BulkGetResult is one decoded part of a _bulk_get or open_revs response.
// Error parts leave Doc empty and set Error, Reason and Status.
type BulkGetResult struct {
	ID     string
	Rev    string
	Error  string
	Reason string
	Status int

	// Doc is the document body, including its _id and _rev.
	Doc json.RawMessage
	// Attachments counts the parts that followed the document inside a
	// multipart/related part.
	Attachments int
}

func (r *BulkGetResult) IsError() bool {
	return r.Error != ""
}

type bulkGetFields struct {
	ID     string `json:"_id"`
	Rev    string `json:"_rev"`
	ErrID  string `json:"id"`
	ErrRev string `json:"rev"`
	Error  string `json:"error"`
	Reason string `json:"reason"`
	Status int    `json:"status"`
}

// DecodeBulkGetPart interprets a part returned by BulkGet. A document sent
// with attachments arrives as a nested multipart/related part whose first
// section is the JSON body.
func DecodeBulkGetPart(p Part) (*BulkGetResult, error) {
	mediaType, params, err := mime.ParseMediaType(p.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("part has no usable Content-Type: %w", err)
	}

	body := p.Body
	attachments := 0
	if strings.HasPrefix(mediaType, "multipart/") {
		nested := NewMultipartReader(bytes.NewReader(p.Body), params["boundary"])
		first, err := nested.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to read nested document: %w", err)
		}
		body = first.Body
		for _, err := range nested.All() {
			if err != nil {
				return nil, fmt.Errorf("failed to read attachment: %w", err)
			}
			attachments++
		}
	}

	var fields bulkGetFields
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode part body: %w", err)
	}

	if p.IsError() || fields.Error != "" {
		return &BulkGetResult{
			ID:     fields.ErrID,
			Rev:    fields.ErrRev,
			Error:  fields.Error,
			Reason: fields.Reason,
			Status: fields.Status,
		}, nil
	}
	return &BulkGetResult{
		ID:          fields.ID,
		Rev:         fields.Rev,
		Doc:         json.RawMessage(body),
		Attachments: attachments,
	}, nil
}

// CollectBulkGet decodes every remaining part of mr and closes it.
func CollectBulkGet(mr *MultipartReader) ([]BulkGetResult, error) {
	defer mr.Close()
	var results []BulkGetResult
	for part, err := range mr.All() {
		if err != nil {
			return results, err
		}
		result, err := DecodeBulkGetPart(part)
		if err != nil {
			return results, err
		}
		results = append(results, *result)
	}
	return results, nil
}
