package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Storage persists benchmark reports into a results database: a Turso database
// (optionally created through the platform API) or a local SQLite file.
type Storage struct {
	OrgName   string
	GroupName string
	ApiToken  string
	AuthToken string
	ApiURL    string
	Logger    *zap.SugaredLogger
}

type Measurement struct {
	Run         string
	Benchmarker string
	Scope       string
	Name        string
	Measurement string
	Count       int
	Value       float64
}

func (s *Storage) apiURL() string {
	if s.ApiURL != "" {
		return strings.TrimRight(s.ApiURL, "/")
	}
	return "https://api.turso.tech"
}

func (s *Storage) CreateDatabase(ctx context.Context, name string) error {
	url := fmt.Sprintf("%v/v1/organizations/%v/databases", s.apiURL(), s.OrgName)
	payload, err := json.Marshal(map[string]string{"name": name, "group": s.GroupName})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Add("Authorization", "Bearer "+s.ApiToken)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != 200 {
		return fmt.Errorf("unexpected status code %v: %v", resp.StatusCode, string(body))
	}
	if s.Logger != nil {
		s.Logger.Infof("created database %v", name)
	}
	return nil
}

// DbURL is the libsql URL of a database created in the organization.
func (s *Storage) DbURL(name string) string {
	return fmt.Sprintf("libsql://%v-%v.turso.io", name, s.OrgName)
}

func isRemoteDb(target string) bool {
	for _, prefix := range []string{"libsql://", "http://", "https://", "ws://", "wss://"} {
		if strings.HasPrefix(target, prefix) {
			return true
		}
	}
	return false
}

// ConnectDb opens a remote database through libsql or a local file through sqlite.
func (s *Storage) ConnectDb(target string) (*sql.DB, error) {
	if !isRemoteDb(target) {
		return sql.Open("sqlite", target)
	}
	if s.AuthToken != "" && !strings.Contains(target, "authToken=") {
		separator := "?"
		if strings.Contains(target, "?") {
			separator = "&"
		}
		target = target + separator + "authToken=" + url.QueryEscape(s.AuthToken)
	}
	return sql.Open("libsql", target)
}

func (s *Storage) InitResultsDb(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS parameters (
		run TEXT,
		name TEXT,
		value TEXT,
		PRIMARY KEY (run, name)
	)`)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS measurements (
		run TEXT,
		benchmarker TEXT,
		scope TEXT,
		name TEXT,
		measurement TEXT,
		count REAL,
		value REAL,
		PRIMARY KEY (run, benchmarker, scope, name, measurement)
	)`)
	if err != nil {
		return err
	}
	return nil
}

// SaveReport writes the run parameters and one measurement per numeric
// aggregate field in a single transaction.
func (s *Storage) SaveReport(ctx context.Context, db *sql.DB, run string, report *Report) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	parameters := map[string]any{"title": report.Title, "time": time.Now().Format("2006-01-02 15:04:05")}
	for key, value := range report.BenchmarkParams {
		parameters[key] = value
	}
	for _, key := range sortedKeys(parameters) {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO parameters VALUES (?, ?, ?) ON CONFLICT DO NOTHING",
			run, key, fmt.Sprintf("%v", parameters[key]),
		)
		if err != nil {
			return err
		}
	}

	for _, measurement := range Measurements(run, report) {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO measurements VALUES (?, ?, ?, ?, ?, ?, ?)",
			measurement.Run,
			measurement.Benchmarker,
			measurement.Scope,
			measurement.Name,
			measurement.Measurement,
			measurement.Count,
			measurement.Value,
		)
		if err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	if s.Logger != nil {
		s.Logger.Infof("saved report for run %v", run)
	}
	return nil
}

func (s *Storage) Parameters(ctx context.Context, db *sql.DB, run string) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT name, value FROM parameters WHERE run = ?", run)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		results[name] = value
	}
	return results, rows.Err()
}

func (s *Storage) LoadMeasurements(ctx context.Context, db *sql.DB, run string) ([]Measurement, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT run, benchmarker, scope, name, measurement, count, value FROM measurements
		WHERE run = ? ORDER BY benchmarker, scope, name, measurement`,
		run,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := make([]Measurement, 0)
	for rows.Next() {
		var m Measurement
		var count float64
		if err := rows.Scan(&m.Run, &m.Benchmarker, &m.Scope, &m.Name, &m.Measurement, &count, &m.Value); err != nil {
			return nil, err
		}
		m.Count = int(count)
		results = append(results, m)
	}
	return results, rows.Err()
}

const (
	controllerBenchmarker = "controller"
	controllerStatsScope  = "controller_stats"
)

// Measurements flattens the report into rows: per benchmarker the global
// aggregate first, then scopes and entries in name order; controller call
// statistics come last.
func Measurements(run string, report *Report) []Measurement {
	results := make([]Measurement, 0)
	add := func(benchmarker, scope, name string, aggregate Aggregate) {
		for _, key := range sortedKeys(aggregate) {
			if key == countKey {
				continue
			}
			value, ok := aggregate.Float(key)
			if !ok {
				continue
			}
			results = append(results, Measurement{
				Run:         run,
				Benchmarker: benchmarker,
				Scope:       scope,
				Name:        name,
				Measurement: key,
				Count:       aggregate.Count(),
				Value:       value,
			})
		}
	}
	for _, benchmarker := range sortedKeys(report.Benchmarks) {
		benchmarkerReport := report.Benchmarks[benchmarker]
		if benchmarkerReport.Global != nil {
			add(benchmarker, globalKey, globalKey, benchmarkerReport.Global)
		}
		for _, scope := range sortedKeys(benchmarkerReport.Scopes) {
			entries := benchmarkerReport.Scopes[scope]
			for _, name := range sortedKeys(entries) {
				add(benchmarker, scope, name, entries[name])
			}
		}
	}
	for _, call := range sortedKeys(report.ControllerStats) {
		add(controllerBenchmarker, controllerStatsScope, call, report.ControllerStats[call])
	}
	return results
}
