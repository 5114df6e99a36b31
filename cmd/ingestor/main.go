package main

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	natsadapter "github.com/samirrijal/kilopost/internal/adapters/nats"
	"github.com/samirrijal/kilopost/internal/adapters/postgres"
	"github.com/samirrijal/kilopost/internal/core/domain"
	"github.com/samirrijal/kilopost/internal/core/linearref"
	"github.com/samirrijal/kilopost/internal/core/ports"
	"github.com/samirrijal/kilopost/internal/pkg/config"
	"github.com/samirrijal/kilopost/internal/pkg/geomcodec"
	"github.com/samirrijal/kilopost/internal/pkg/metrics"
	"github.com/samirrijal/kilopost/internal/pkg/shapefile"
)

// ---------------------------------------------------------------------------
// Manifest types
// ---------------------------------------------------------------------------

type Manifest struct {
	Source   string         `json:"source"`
	Datasets []DatasetEntry `json:"datasets"`
}

// DatasetEntry describes one shapefile source. Either URL (a zip
// containing the .shp/.dbf pair) or Path (local base path, extension
// optional) must be set. RefField names the dBase column carrying the
// road reference code; NameField is optional.
type DatasetEntry struct {
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	URL       string `json:"url,omitempty"`
	Path      string `json:"path,omitempty"`
	RefField  string `json:"ref_field"`
	NameField string `json:"name_field,omitempty"`
}

// ---------------------------------------------------------------------------
// Main
// ---------------------------------------------------------------------------

func main() {
	cfg, err := config.Load("kilopost-ingestor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	repo := postgres.NewRoadRepo(db)

	// Events are best-effort; ingestion proceeds without a broker.
	var pub ports.EventPublisher
	if p, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		log.Printf("nats unavailable, events disabled: %v", err)
	} else {
		pub = p
		defer p.Close()
	}

	// Load manifest
	manifestPath := "manifest.json"
	if len(os.Args) > 1 {
		manifestPath = os.Args[1]
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		log.Fatalf("read manifest: %v", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		log.Fatalf("parse manifest: %v", err)
	}

	log.Printf("KiloPost road ingestor — %d datasets from %s", len(manifest.Datasets), manifest.Source)

	// Filter datasets (optional CLI arg: slug list)
	slugFilter := map[string]bool{}
	if len(os.Args) > 2 {
		for _, s := range strings.Split(os.Args[2], ",") {
			slugFilter[strings.TrimSpace(s)] = true
		}
	}

	client := &http.Client{Timeout: 120 * time.Second}

	var wg sync.WaitGroup
	sem := make(chan struct{}, 4) // max 4 concurrent datasets

	for _, ds := range manifest.Datasets {
		if len(slugFilter) > 0 && !slugFilter[ds.Slug] {
			continue
		}

		wg.Add(1)
		go func(d DatasetEntry) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := ingestDataset(ctx, repo, pub, client, d); err != nil {
				log.Printf("ERROR [%s]: %v", d.Slug, err)
			}
		}(ds)
	}

	wg.Wait()
	log.Println("ingestion complete")
}

// ---------------------------------------------------------------------------
// Per-dataset ingestion
// ---------------------------------------------------------------------------

func ingestDataset(ctx context.Context, repo ports.RoadRepository, pub ports.EventPublisher, client *http.Client, ds DatasetEntry) error {
	if ds.RefField == "" {
		return fmt.Errorf("dataset %s: ref_field is required", ds.Slug)
	}

	reader, err := openDataset(client, ds)
	if err != nil {
		return err
	}
	defer reader.Close()

	engine := linearref.NewEngine()

	const batchSize = 500
	var batch []domain.Road
	total := 0
	skipped := 0

	for {
		rec, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read shape: %w", err)
		}

		// Deleted rows come back with nil attributes.
		if rec.Attributes == nil {
			skipped++
			continue
		}
		if rec.Type != shapefile.TypePolyLine && rec.Type != shapefile.TypePolyLineZ {
			skipped++
			continue
		}
		if len(rec.Parts) == 0 || len(rec.Parts[0]) < 2 {
			skipped++
			continue
		}

		ref := strings.TrimSpace(rec.Attributes[ds.RefField])
		if ref == "" {
			skipped++
			continue
		}
		name := strings.TrimSpace(rec.Attributes[ds.NameField])
		if name == "" {
			name = ref
		}

		// Multi-part polylines keep only the first part, matching the
		// geometry codec's policy for MULTILINESTRING input.
		part := rec.Parts[0]
		line := make([]domain.GeoPoint, len(part))
		for i, p := range part {
			line[i] = domain.GeoPoint{Lat: p.Y, Lon: p.X}
		}

		wkt, err := geomcodec.EncodeLineWKT(line)
		if err != nil {
			log.Printf("[%s] record %d: %v", ds.Slug, rec.Number, err)
			metrics.IngestErrors.WithLabelValues(ds.Slug).Inc()
			skipped++
			continue
		}

		batch = append(batch, domain.Road{
			Ref:      ref,
			Name:     name,
			LengthKm: engine.LengthKm(line),
			WKT:      wkt,
		})
		total++

		if len(batch) >= batchSize {
			if err := flushBatch(ctx, repo, pub, ds.Slug, batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		if err := flushBatch(ctx, repo, pub, ds.Slug, batch); err != nil {
			return err
		}
	}

	log.Printf("[%s] done: %d roads, %d skipped", ds.Slug, total, skipped)
	return nil
}

func flushBatch(ctx context.Context, repo ports.RoadRepository, pub ports.EventPublisher, slug string, roads []domain.Road) error {
	if err := repo.UpsertBatch(ctx, roads); err != nil {
		return fmt.Errorf("upsert batch: %w", err)
	}
	metrics.RoadsIngested.WithLabelValues(slug).Add(float64(len(roads)))
	if pub != nil {
		for i := range roads {
			if err := pub.PublishRoadIngested(ctx, &roads[i]); err != nil {
				log.Printf("[%s] publish %s: %v", slug, roads[i].Ref, err)
			}
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Dataset sources
// ---------------------------------------------------------------------------

// openDataset resolves a manifest entry to a shapefile reader, either
// by downloading a zip or by opening a local .shp/.dbf pair.
func openDataset(client *http.Client, ds DatasetEntry) (*shapefile.Reader, error) {
	if ds.Path != "" {
		return shapefile.Open(ds.Path)
	}
	if ds.URL == "" {
		return nil, fmt.Errorf("dataset %s: url or path required", ds.Slug)
	}

	log.Printf("[%s] downloading %s", ds.Slug, ds.URL)

	resp, err := client.Get(ds.URL)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, ds.URL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}

	shp, err := readZipEntry(zr, ".shp")
	if err != nil {
		return nil, err
	}
	dbf, err := readZipEntry(zr, ".dbf")
	if err != nil {
		return nil, err
	}

	return shapefile.NewReader(bytes.NewReader(shp), bytes.NewReader(dbf))
}

func readZipEntry(zr *zip.Reader, ext string) ([]byte, error) {
	for _, f := range zr.File {
		if strings.EqualFold(path.Ext(f.Name), ext) {
			rc, err := f.Open()
			if err != nil {
				return nil, err
			}
			defer rc.Close()
			return io.ReadAll(rc)
		}
	}
	return nil, fmt.Errorf("no %s entry in zip", ext)
}
