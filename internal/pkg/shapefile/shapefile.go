// Package shapefile reads ESRI shapefile (.shp) geometry together with
// its companion dBase (.dbf) attribute table. Record headers are
// big-endian and record payloads little-endian, per the ESRI spec.
// Z and M values on 3D shape types are parsed past and discarded.
package shapefile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
)

// ShapeType identifies the geometry kind of a record.
type ShapeType int32

const (
	TypeNull        ShapeType = 0
	TypePoint       ShapeType = 1
	TypePolyLine    ShapeType = 3
	TypePolygon     ShapeType = 5
	TypeMultiPoint  ShapeType = 8
	TypePointZ      ShapeType = 11
	TypePolyLineZ   ShapeType = 13
	TypePolygonZ    ShapeType = 15
	TypeMultiPointZ ShapeType = 18
)

const (
	shpFileCode   = 9994
	shpHeaderSize = 100
	dbfDescSize   = 32
)

var ErrBadHeader = errors.New("shapefile: bad file header")

// Point is a 2D coordinate; X is longitude, Y is latitude for
// geographic data.
type Point struct {
	X, Y float64
}

// Record is one shape with its attribute row. Point and MultiPoint
// shapes fill Points; PolyLine and Polygon shapes fill Parts. A nil
// Attributes map means the matching .dbf row was flagged deleted.
type Record struct {
	Number     int32
	Type       ShapeType
	Points     []Point
	Parts      [][]Point
	Attributes map[string]string
}

type dbfField struct {
	name   string
	length int
}

// Reader iterates over the records of a .shp/.dbf pair.
type Reader struct {
	shp    io.Reader
	dbf    io.Reader
	fields []dbfField
	dbfRow []byte

	closers []io.Closer
}

// Open opens base+".shp" and base+".dbf" and returns a Reader over them.
func Open(base string) (*Reader, error) {
	base = strings.TrimSuffix(base, ".shp")
	shp, err := os.Open(base + ".shp")
	if err != nil {
		return nil, err
	}
	dbf, err := os.Open(base + ".dbf")
	if err != nil {
		shp.Close()
		return nil, err
	}
	r, err := NewReader(shp, dbf)
	if err != nil {
		shp.Close()
		dbf.Close()
		return nil, err
	}
	r.closers = []io.Closer{shp, dbf}
	return r, nil
}

// NewReader wraps raw .shp and .dbf streams. Both headers are consumed
// immediately so a malformed pair fails fast.
func NewReader(shp, dbf io.Reader) (*Reader, error) {
	r := &Reader{shp: shp, dbf: dbf}
	if err := r.readShpHeader(); err != nil {
		return nil, err
	}
	if err := r.readDbfHeader(); err != nil {
		return nil, err
	}
	return r, nil
}

// Fields returns the attribute column names in table order.
func (r *Reader) Fields() []string {
	names := make([]string, len(r.fields))
	for i, f := range r.fields {
		names[i] = f.name
	}
	return names
}

// Close releases the underlying files when the Reader was built by Open.
func (r *Reader) Close() error {
	var firstErr error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Next returns the next record, or io.EOF after the last one.
func (r *Reader) Next() (*Record, error) {
	var hdr [8]byte
	if _, err := io.ReadFull(r.shp, hdr[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, err
	}
	number := int32(binary.BigEndian.Uint32(hdr[0:4]))
	contentWords := binary.BigEndian.Uint32(hdr[4:8])

	// Content length is in 16-bit words. Read the whole payload so
	// trailing Z/M sections of 3D types are consumed in one go.
	content := make([]byte, contentWords*2)
	if _, err := io.ReadFull(r.shp, content); err != nil {
		return nil, fmt.Errorf("shapefile: record %d truncated: %w", number, err)
	}

	rec := &Record{Number: number}
	if err := rec.parseShape(content); err != nil {
		return nil, fmt.Errorf("shapefile: record %d: %w", number, err)
	}

	attrs, err := r.readDbfRecord()
	if err != nil {
		return nil, fmt.Errorf("shapefile: record %d attributes: %w", number, err)
	}
	rec.Attributes = attrs
	return rec, nil
}

func (r *Reader) readShpHeader() error {
	var hdr [shpHeaderSize]byte
	if _, err := io.ReadFull(r.shp, hdr[:]); err != nil {
		return fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	if code := binary.BigEndian.Uint32(hdr[0:4]); code != shpFileCode {
		return fmt.Errorf("%w: file code %d", ErrBadHeader, code)
	}
	return nil
}

func (r *Reader) readDbfHeader() error {
	var hdr [32]byte
	if _, err := io.ReadFull(r.dbf, hdr[:]); err != nil {
		return fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	headerLen := int(binary.LittleEndian.Uint16(hdr[8:10]))
	recordLen := int(binary.LittleEndian.Uint16(hdr[10:12]))
	if headerLen < 33 || recordLen < 1 {
		return fmt.Errorf("%w: dbf header/record lengths %d/%d", ErrBadHeader, headerLen, recordLen)
	}

	// Field descriptors fill the rest of the header up to the 0x0D
	// terminator byte.
	descBytes := headerLen - 32
	desc := make([]byte, descBytes)
	if _, err := io.ReadFull(r.dbf, desc); err != nil {
		return fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	for off := 0; off+dbfDescSize <= descBytes && desc[off] != 0x0D; off += dbfDescSize {
		d := desc[off : off+dbfDescSize]
		name := strings.TrimRight(string(d[0:11]), "\x00")
		r.fields = append(r.fields, dbfField{name: name, length: int(d[16])})
	}

	fieldsLen := 1 // deletion flag
	for _, f := range r.fields {
		fieldsLen += f.length
	}
	if fieldsLen != recordLen {
		return fmt.Errorf("%w: dbf field lengths sum to %d, record length is %d", ErrBadHeader, fieldsLen, recordLen)
	}
	r.dbfRow = make([]byte, recordLen)
	return nil
}

// readDbfRecord consumes one attribute row. A row flagged deleted is
// consumed but returned as nil so .shp/.dbf alignment is preserved.
func (r *Reader) readDbfRecord() (map[string]string, error) {
	if _, err := io.ReadFull(r.dbf, r.dbfRow); err != nil {
		// A shapefile may legitimately carry more shapes than rows.
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, nil
		}
		return nil, err
	}
	if r.dbfRow[0] == '*' {
		return nil, nil
	}
	attrs := make(map[string]string, len(r.fields))
	off := 1
	for _, f := range r.fields {
		attrs[f.name] = strings.TrimSpace(string(r.dbfRow[off : off+f.length]))
		off += f.length
	}
	return attrs, nil
}

func (rec *Record) parseShape(content []byte) error {
	if len(content) < 4 {
		return errors.New("content too short")
	}
	rec.Type = ShapeType(binary.LittleEndian.Uint32(content[0:4]))
	body := content[4:]

	switch rec.Type {
	case TypeNull:
		return nil
	case TypePoint, TypePointZ:
		if len(body) < 16 {
			return errors.New("point content too short")
		}
		rec.Points = []Point{readPoint(body)}
		return nil
	case TypeMultiPoint, TypeMultiPointZ:
		return rec.parseMultiPoint(body)
	case TypePolyLine, TypePolyLineZ, TypePolygon, TypePolygonZ:
		return rec.parseParts(body)
	default:
		return fmt.Errorf("unsupported shape type %d", rec.Type)
	}
}

func (rec *Record) parseMultiPoint(body []byte) error {
	// Bounding box (4 doubles) then point count.
	if len(body) < 36 {
		return errors.New("multipoint content too short")
	}
	n := int(binary.LittleEndian.Uint32(body[32:36]))
	body = body[36:]
	if len(body) < n*16 {
		return errors.New("multipoint points truncated")
	}
	rec.Points = make([]Point, n)
	for i := 0; i < n; i++ {
		rec.Points[i] = readPoint(body[i*16:])
	}
	return nil
}

func (rec *Record) parseParts(body []byte) error {
	// Bounding box (4 doubles), part count, point count, part start
	// indices, then the flat point array.
	if len(body) < 40 {
		return errors.New("polyline content too short")
	}
	numParts := int(binary.LittleEndian.Uint32(body[32:36]))
	numPoints := int(binary.LittleEndian.Uint32(body[36:40]))
	body = body[40:]
	if numParts < 1 || len(body) < numParts*4+numPoints*16 {
		return errors.New("polyline parts truncated")
	}

	starts := make([]int, numParts+1)
	for i := 0; i < numParts; i++ {
		starts[i] = int(binary.LittleEndian.Uint32(body[i*4:]))
	}
	starts[numParts] = numPoints
	body = body[numParts*4:]

	rec.Parts = make([][]Point, numParts)
	for p := 0; p < numParts; p++ {
		if starts[p] > starts[p+1] || starts[p+1] > numPoints {
			return errors.New("polyline part indices out of order")
		}
		part := make([]Point, starts[p+1]-starts[p])
		for i := range part {
			part[i] = readPoint(body[(starts[p]+i)*16:])
		}
		rec.Parts[p] = part
	}
	return nil
}

func readPoint(b []byte) Point {
	return Point{
		X: math.Float64frombits(binary.LittleEndian.Uint64(b[0:8])),
		Y: math.Float64frombits(binary.LittleEndian.Uint64(b[8:16])),
	}
}
