package shapefile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"
)

func putFloat(b []byte, v float64) {
	binary.LittleEndian.PutUint64(b, math.Float64bits(v))
}

func shpHeader() []byte {
	hdr := make([]byte, shpHeaderSize)
	binary.BigEndian.PutUint32(hdr[0:4], shpFileCode)
	binary.LittleEndian.PutUint32(hdr[28:32], 1000) // version
	return hdr
}

func shpRecord(num int32, content []byte) []byte {
	rec := make([]byte, 8+len(content))
	binary.BigEndian.PutUint32(rec[0:4], uint32(num))
	binary.BigEndian.PutUint32(rec[4:8], uint32(len(content)/2))
	copy(rec[8:], content)
	return rec
}

func polylineContent(parts [][]Point) []byte {
	var numPoints int
	for _, p := range parts {
		numPoints += len(p)
	}
	content := make([]byte, 4+32+8+len(parts)*4+numPoints*16)
	binary.LittleEndian.PutUint32(content[0:4], uint32(TypePolyLine))
	off := 36 // skip bounding box
	binary.LittleEndian.PutUint32(content[off:], uint32(len(parts)))
	binary.LittleEndian.PutUint32(content[off+4:], uint32(numPoints))
	off += 8
	start := 0
	for _, p := range parts {
		binary.LittleEndian.PutUint32(content[off:], uint32(start))
		start += len(p)
		off += 4
	}
	for _, p := range parts {
		for _, pt := range p {
			putFloat(content[off:], pt.X)
			putFloat(content[off+8:], pt.Y)
			off += 16
		}
	}
	return content
}

func pointContent(p Point) []byte {
	content := make([]byte, 4+16)
	binary.LittleEndian.PutUint32(content[0:4], uint32(TypePoint))
	putFloat(content[4:], p.X)
	putFloat(content[12:], p.Y)
	return content
}

type dbfCol struct {
	name   string
	length int
}

func buildDbf(cols []dbfCol, rows []string) []byte {
	recordLen := 1
	for _, c := range cols {
		recordLen += c.length
	}
	headerLen := 32 + len(cols)*dbfDescSize + 1

	buf := make([]byte, 32)
	buf[0] = 0x03
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(rows)))
	binary.LittleEndian.PutUint16(buf[8:10], uint16(headerLen))
	binary.LittleEndian.PutUint16(buf[10:12], uint16(recordLen))

	for _, c := range cols {
		desc := make([]byte, dbfDescSize)
		copy(desc[0:11], c.name)
		desc[11] = 'C'
		desc[16] = byte(c.length)
		buf = append(buf, desc...)
	}
	buf = append(buf, 0x0D)
	for _, r := range rows {
		buf = append(buf, []byte(r)...)
	}
	return buf
}

func pad(s string, n int) string {
	for len(s) < n {
		s += " "
	}
	return s
}

func TestReadPolylineWithAttributes(t *testing.T) {
	shp := shpHeader()
	shp = append(shp, shpRecord(1, polylineContent([][]Point{
		{{X: -2.9, Y: 43.2}, {X: -2.8, Y: 43.3}},
		{{X: -2.7, Y: 43.4}, {X: -2.6, Y: 43.5}, {X: -2.5, Y: 43.6}},
	}))...)

	cols := []dbfCol{{"REF", 8}, {"NAME", 16}}
	dbf := buildDbf(cols, []string{
		" " + pad("N-634", 8) + pad("Cantabrian road", 16),
	})

	r, err := NewReader(bytes.NewReader(shp), bytes.NewReader(dbf))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if got := r.Fields(); len(got) != 2 || got[0] != "REF" || got[1] != "NAME" {
		t.Errorf("Fields() = %v", got)
	}

	rec, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if rec.Number != 1 || rec.Type != TypePolyLine {
		t.Errorf("record header = %d/%d", rec.Number, rec.Type)
	}
	if len(rec.Parts) != 2 || len(rec.Parts[0]) != 2 || len(rec.Parts[1]) != 3 {
		t.Fatalf("parts = %+v", rec.Parts)
	}
	if rec.Parts[0][0] != (Point{X: -2.9, Y: 43.2}) {
		t.Errorf("first point = %+v", rec.Parts[0][0])
	}
	if rec.Attributes["REF"] != "N-634" || rec.Attributes["NAME"] != "Cantabrian road" {
		t.Errorf("attributes = %v", rec.Attributes)
	}

	if _, err := r.Next(); err != io.EOF {
		t.Errorf("want io.EOF after last record, got %v", err)
	}
}

func TestReadPointAndDeletedRow(t *testing.T) {
	shp := shpHeader()
	shp = append(shp, shpRecord(1, pointContent(Point{X: 1.5, Y: 2.5}))...)
	shp = append(shp, shpRecord(2, pointContent(Point{X: 3.5, Y: 4.5}))...)

	cols := []dbfCol{{"REF", 8}}
	dbf := buildDbf(cols, []string{
		"*" + pad("GONE", 8), // deleted row
		" " + pad("KEPT", 8),
	})

	r, err := NewReader(bytes.NewReader(shp), bytes.NewReader(dbf))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	rec, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if rec.Attributes != nil {
		t.Errorf("deleted row should yield nil attributes, got %v", rec.Attributes)
	}
	if len(rec.Points) != 1 || rec.Points[0] != (Point{X: 1.5, Y: 2.5}) {
		t.Errorf("points = %+v", rec.Points)
	}

	rec, err = r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if rec.Attributes["REF"] != "KEPT" {
		t.Errorf("attributes = %v", rec.Attributes)
	}
}

func TestBadFileCode(t *testing.T) {
	shp := shpHeader()
	binary.BigEndian.PutUint32(shp[0:4], 1234)
	dbf := buildDbf([]dbfCol{{"REF", 8}}, nil)

	if _, err := NewReader(bytes.NewReader(shp), bytes.NewReader(dbf)); !errors.Is(err, ErrBadHeader) {
		t.Errorf("want ErrBadHeader, got %v", err)
	}
}

func TestTruncatedRecord(t *testing.T) {
	content := pointContent(Point{X: 1, Y: 2})
	rec := shpRecord(1, content)
	shp := append(shpHeader(), rec[:len(rec)-4]...) // cut the payload short
	dbf := buildDbf([]dbfCol{{"REF", 8}}, []string{" " + pad("X", 8)})

	r, err := NewReader(bytes.NewReader(shp), bytes.NewReader(dbf))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if _, err := r.Next(); err == nil || err == io.EOF {
		t.Errorf("want truncation error, got %v", err)
	}
}
