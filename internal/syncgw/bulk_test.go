package syncgw

import (
	"strings"
	"testing"
)

func TestDecodeBulkGetPart(t *testing.T) {
	nested := "--att\r\nContent-Type: application/json\r\n\r\n{\"_id\":\"c\",\"_rev\":\"3-c\",\"_attachments\":{\"a.txt\":{\"follows\":true}}}\r\n" +
		"--att\r\nContent-Type: text/plain\r\nContent-Disposition: attachment; filename=\"a.txt\"\r\n\r\nhello\r\n--att--"

	tests := []struct {
		name        string
		part        Part
		want        BulkGetResult
		attachments int
	}{
		{
			name: "document",
			part: Part{Header: map[string]string{"Content-Type": "application/json"}, Body: []byte(`{"_id":"a","_rev":"1-a","n":1}`)},
			want: BulkGetResult{ID: "a", Rev: "1-a"},
		},
		{
			name: "error part",
			part: Part{Header: map[string]string{"Content-Type": `application/json; error="true"`}, Body: []byte(`{"error":"not_found","id":"b","reason":"missing","status":404}`)},
			want: BulkGetResult{ID: "b", Error: "not_found", Reason: "missing", Status: 404},
		},
		{
			name:        "document with attachments",
			part:        Part{Header: map[string]string{"Content-Type": `multipart/related; boundary="att"`}, Body: []byte(nested)},
			want:        BulkGetResult{ID: "c", Rev: "3-c"},
			attachments: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeBulkGetPart(tt.part)
			if err != nil {
				t.Fatal(err)
			}
			if got.ID != tt.want.ID || got.Rev != tt.want.Rev || got.Error != tt.want.Error ||
				got.Reason != tt.want.Reason || got.Status != tt.want.Status {
				t.Errorf("result = %+v, want %+v", got, tt.want)
			}
			if got.IsError() != (tt.want.Error != "") {
				t.Errorf("IsError = %v", got.IsError())
			}
			if !got.IsError() && len(got.Doc) == 0 {
				t.Error("document body missing")
			}
			if got.Attachments != tt.attachments {
				t.Errorf("attachments = %d, want %d", got.Attachments, tt.attachments)
			}
		})
	}
}

func TestDecodeBulkGetPartRejectsGarbage(t *testing.T) {
	if _, err := DecodeBulkGetPart(Part{Header: map[string]string{}, Body: []byte("{}")}); err == nil {
		t.Error("expected an error without a Content-Type")
	}
	part := Part{Header: map[string]string{"Content-Type": "application/json"}, Body: []byte("not json")}
	if _, err := DecodeBulkGetPart(part); err == nil {
		t.Error("expected an error for a non-JSON body")
	}
}

func TestCollectBulkGet(t *testing.T) {
	body := "--b\r\nContent-Type: application/json\r\n\r\n{\"_id\":\"a\",\"_rev\":\"1-a\"}\r\n" +
		"--b\r\nContent-Type: application/json; error=\"true\"\r\n\r\n{\"error\":\"forbidden\",\"id\":\"x\",\"reason\":\"no access\",\"status\":403}\r\n" +
		"--b--\r\n"

	results, err := CollectBulkGet(NewMultipartReader(strings.NewReader(body), "b"))
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].ID != "a" || results[1].Status != 403 {
		t.Errorf("results = %+v", results)
	}
}
