package proto

import (
	"reflect"
	"testing"

	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/types/known/emptypb"
)

func TestPackageInfo_OptionalJSONPresence(t *testing.T) {
	withEmpty := &PackageInfo{Name: "iris", DatapackageJson: String("")}
	enc, err := withEmpty.Marshal()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var got PackageInfo
	if err := got.Unmarshal(enc); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if got.DatapackageJson == nil {
		t.Fatal("an explicitly empty json field must stay present")
	}

	without := &PackageInfo{Name: "iris"}
	enc, _ = without.Marshal()
	if err := got.Unmarshal(enc); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if got.DatapackageJson != nil {
		t.Fatal("an absent json field must decode as nil")
	}
}

func TestPackageList_Decode(t *testing.T) {
	in := &PackageList{
		Packages: []*PackageInfo{
			{Name: "iris", Version: "0.1.0", License: "CC0-1.0", DatapackageJson: String(`{"name":"iris"}`)},
			{Name: "mnist", Version: "1.0.0", PreviewImages: []string{"a.png", "b.png"}},
		},
		TotalCount: 2,
		Limit:      Int32(30),
		Offset:     Int32(0),
	}
	enc, err := in.Marshal()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var out PackageList
	if err := out.Unmarshal(enc); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if !reflect.DeepEqual(in, &out) {
		t.Errorf("decoded list differs:\n got %+v\nwant %+v", out, in)
	}
}

func TestListPackagesRequest_NegativeAndOptional(t *testing.T) {
	in := &ListPackagesRequest{
		LastSync:     Int64(1700000000000),
		PackageType:  PackageTypeModel,
		Sort:         []*SortOption{{Field: "version", Descending: true}},
		Limit:        Int32(-1),
		FieldOptions: &FieldOptions{IncludeDatapackageJson: true},
	}
	enc, _ := in.Marshal()

	var out ListPackagesRequest
	if err := out.Unmarshal(enc); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if !reflect.DeepEqual(in, &out) {
		t.Errorf("decoded request differs:\n got %+v\nwant %+v", out, in)
	}
	if _, ok := out.GetOffset(); ok {
		t.Error("offset was never set")
	}
	if !out.FieldOptions.GetIncludeDatapackageJson() {
		t.Error("field options lost")
	}
}

func TestUnmarshal_SkipsUnknownFields(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, 99, protowire.VarintType)
	b = protowire.AppendVarint(b, 7)
	b = appendString(b, 1, "iris")
	// Wrong wire type for a known field is treated as unknown.
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, 1)

	var req PackageRequest
	if err := req.Unmarshal(b); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if req.SearchQuery != "iris" {
		t.Errorf("query mismatch: got %q", req.SearchQuery)
	}
}

func TestUnmarshal_Truncated(t *testing.T) {
	enc, _ := (&PackageInfo{Name: "a-long-package-name"}).Marshal()
	var out PackageInfo
	if err := out.Unmarshal(enc[:len(enc)-3]); err == nil {
		t.Error("expected error for truncated message")
	}
}

func TestCodec(t *testing.T) {
	c := codec{}
	if c.Name() != CodecName {
		t.Errorf("name mismatch: got %s", c.Name())
	}
	if _, err := c.Marshal("not a message"); err == nil {
		t.Error("expected error for foreign type")
	}
	if encoding.GetCodec(CodecName) == nil {
		t.Error("codec should be registered as the default proto codec")
	}

	enc, err := c.Marshal(&PackageRequest{SearchQuery: "iris"})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var req PackageRequest
	if err := c.Unmarshal(enc, &req); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if req.SearchQuery != "iris" {
		t.Errorf("query mismatch: got %q", req.SearchQuery)
	}
}

func TestCodec_GeneratedMessages(t *testing.T) {
	c := codec{}

	// A generated message decodes our encoding and keeps the fields it does
	// not know as unknown fields.
	enc, err := c.Marshal(&PackageInfo{Name: "iris", Version: "0.1.0"})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var raw emptypb.Empty
	if err := c.Unmarshal(enc, &raw); err != nil {
		t.Fatalf("unmarshal into generated message failed: %v", err)
	}
	back, err := c.Marshal(&raw)
	if err != nil {
		t.Fatalf("marshal of generated message failed: %v", err)
	}

	var info PackageInfo
	if err := c.Unmarshal(back, &info); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if info.Name != "iris" || info.Version != "0.1.0" {
		t.Errorf("fields lost through generated message: %+v", info)
	}
}
