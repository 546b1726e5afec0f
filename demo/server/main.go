package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/paulmach/orb/geojson"
	_ "modernc.org/sqlite"

	gpkg "github.com/tingold/orb-gpkg"
	"github.com/tingold/orb-gpkg/flatgeobuf"
)

type City struct {
	Name       string
	Country    string
	Longitude  float64
	Latitude   float64
	Elevation  float64
	Population int
	Capital    bool
}

var cities = []City{
	{"Tokyo", "Japan", 139.6917, 35.6895, 40, 13960000, true},
	{"New York", "United States", -73.9857, 40.7484, 10, 8336817, false},
	{"London", "United Kingdom", -0.1276, 51.5074, 11, 8982000, true},
	{"Paris", "France", 2.3522, 48.8566, 35, 2161000, true},
	{"Beijing", "China", 116.4074, 39.9042, 44, 21540000, true},
	{"Moscow", "Russia", 37.6173, 55.7558, 156, 12615000, true},
	{"São Paulo", "Brazil", -46.6333, -23.5505, 760, 12300000, false},
	{"Mumbai", "India", 72.8777, 19.0760, 14, 12400000, false},
	{"Los Angeles", "United States", -118.2437, 34.0522, 71, 3971883, false},
	{"Shanghai", "China", 121.4737, 31.2304, 4, 24870000, false},
	{"Istanbul", "Turkey", 28.9784, 41.0082, 39, 15520000, false},
	{"Buenos Aires", "Argentina", -58.3816, -34.6037, 25, 3075646, true},
	{"Cairo", "Egypt", 31.2357, 30.0444, 23, 10230000, true},
	{"Sydney", "Australia", 151.2093, -33.8688, 58, 5312000, false},
	{"Berlin", "Germany", 13.4050, 52.5200, 34, 3669491, true},
}

var citiesColumn = gpkg.GeometryColumn{
	TableName:    "cities",
	ColumnName:   "geom",
	GeometryType: "POINT",
	SRSID:        4326,
	Z:            gpkg.Mandatory,
	M:            gpkg.Prohibited,
}

// loadCities makes sure the cities feature table exists and is seeded, then
// reads it back as features. Seeding is skipped when the table already has
// rows.
func loadCities(ctx context.Context, db *sql.DB) ([]*gpkg.Feature, error) {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS cities (
		fid INTEGER PRIMARY KEY AUTOINCREMENT,
		geom BLOB NOT NULL,
		name TEXT, country TEXT, population INTEGER, capital BOOLEAN)`)
	if err != nil {
		return nil, errors.Wrap(err, "create table")
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cities`).Scan(&count); err != nil {
		return nil, errors.Wrap(err, "count cities")
	}
	if count == 0 {
		if err := seedCities(ctx, db); err != nil {
			return nil, err
		}
	}
	return readCities(ctx, db)
}

func seedCities(ctx context.Context, db *sql.DB) error {
	geoms := make([]gpkg.Geometry, len(cities))
	for i, city := range cities {
		geoms[i] = gpkg.NewPoint(gpkg.XYZ, gpkg.Coord{X: city.Longitude, Y: city.Latitude, Z: city.Elevation})
		if err := citiesColumn.Verify(geoms[i]); err != nil {
			return errors.Wrap(err, city.Name)
		}
	}

	blobs, err := gpkg.NewCodec(nil).EncodeAll(ctx, geoms, citiesColumn.SRSID)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin seed")
	}
	for i, city := range cities {
		_, err := tx.ExecContext(ctx, `INSERT INTO cities (geom, name, country, population, capital) VALUES (?, ?, ?, ?, ?)`,
			blobs[i], city.Name, city.Country, city.Population, city.Capital)
		if err != nil {
			_ = tx.Rollback()
			return errors.Wrapf(err, "insert %s", city.Name)
		}
	}
	return errors.Wrap(tx.Commit(), "commit seed")
}

func readCities(ctx context.Context, db *sql.DB) ([]*gpkg.Feature, error) {
	rows, err := db.QueryContext(ctx, `SELECT fid, geom, name, country, population, capital FROM cities ORDER BY fid`)
	if err != nil {
		return nil, errors.Wrap(err, "query cities")
	}
	defer rows.Close()

	var features []*gpkg.Feature
	for rows.Next() {
		var (
			fid        int64
			blob       gpkg.Blob
			name       string
			country    string
			population int64
			capital    bool
		)
		if err := rows.Scan(&fid, &blob, &name, &country, &population, &capital); err != nil {
			return nil, errors.Wrap(err, "scan city")
		}
		features = append(features, &gpkg.Feature{
			ID:       fid,
			Geometry: blob.Geometry,
			Attributes: map[string]any{
				"name":       name,
				"country":    country,
				"population": population,
				"capital":    capital,
			},
		})
	}
	return features, errors.Wrap(rows.Err(), "read cities")
}

func toFeatureCollection(features []*gpkg.Feature) (*geojson.FeatureCollection, error) {
	fc := geojson.NewFeatureCollection()
	for _, f := range features {
		gf, err := f.GeoJSON()
		if err != nil {
			return nil, errors.Wrapf(err, "feature %d", f.ID)
		}
		fc.Append(gf)
	}
	return fc, nil
}

func serveBytes(contentType string, data []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Access-Control-Allow-Origin", "*")
		_, _ = w.Write(data)
	}
}

func run(logger *slog.Logger, addr, dsn, clientDir string) error {
	ctx := context.Background()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return errors.Wrap(err, "open database")
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	features, err := loadCities(ctx, db)
	if err != nil {
		return err
	}
	logger.Info("loaded cities", slog.Int("count", len(features)))

	var fgb bytes.Buffer
	opts := &flatgeobuf.Options{
		Name:         "world_cities",
		Description:  "Major world cities",
		IncludeIndex: true,
		CRS:          flatgeobuf.CRSFromSRSID(citiesColumn.SRSID),
	}
	if err := flatgeobuf.WriteFeatures(&fgb, features, opts); err != nil {
		return errors.Wrap(err, "create FlatGeobuf")
	}

	fc, err := toFeatureCollection(features)
	if err != nil {
		return err
	}
	geoJSON, err := json.Marshal(fc)
	if err != nil {
		return errors.Wrap(err, "marshal GeoJSON")
	}
	logger.Info("encoded layers", slog.Int("fgb_bytes", fgb.Len()), slog.Int("geojson_bytes", len(geoJSON)))

	mux := http.NewServeMux()
	mux.HandleFunc("/data.fgb", serveBytes("application/octet-stream", fgb.Bytes()))
	mux.HandleFunc("/data.geojson", serveBytes("application/geo+json", geoJSON))
	mux.Handle("/", http.FileServer(http.Dir(clientDir)))

	logger.Info("server starting", slog.String("addr", addr), slog.String("client_dir", clientDir))
	return http.ListenAndServe(addr, mux)
}

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	dsn := flag.String("db", ":memory:", "SQLite database holding the cities feature table")
	clientDir := flag.String("client", "../client", "directory of static client files")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := run(logger, *addr, *dsn, *clientDir); err != nil {
		logger.Error("server failed", slog.Any("error", err))
		os.Exit(1)
	}
}
