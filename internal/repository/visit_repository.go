// Package repository provides data access implementations
package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/abelzeko/qreview-importer/internal/entities"
)

// ErrVisitNotFound is returned when no visit has the requested key
var ErrVisitNotFound = errors.New("visit not found")

// VisitRepository defines the interface for field visit persistence operations
type VisitRepository interface {
	SaveVisit(visit *entities.FieldVisit) error
	GetLocations() ([]string, error)
	GetVisitsByLocation(identifier string, limit int) ([]entities.VisitSummary, error)
	GetVisitByKey(key string) (*entities.VisitSummary, error)
	GetVerticals(key string) ([]entities.VerticalObservation, error)
	GetLastImportTime() (time.Time, error)
	Close() error
}

// SQLiteVisitRepository implements VisitRepository using SQLite
type SQLiteVisitRepository struct {
	db     *sql.DB
	DBPath string
	logger *slog.Logger
}

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS field_visits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		visit_key TEXT NOT NULL UNIQUE,
		location TEXT NOT NULL,
		start_time DATETIME NOT NULL,
		end_time DATETIME NOT NULL,
		source_name TEXT,
		imported_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_location ON field_visits(location);
	CREATE INDEX IF NOT EXISTS idx_start_time ON field_visits(start_time);

	CREATE TABLE IF NOT EXISTS discharge_activities (
		visit_id INTEGER PRIMARY KEY REFERENCES field_visits(id) ON DELETE CASCADE,
		discharge REAL NOT NULL,
		discharge_unit TEXT NOT NULL,
		party TEXT,
		comments TEXT,
		measurement_id TEXT,
		uncertainty REAL,
		uncertainty_type TEXT,
		qa_comments TEXT,
		grade TEXT,
		discharge_method TEXT,
		start_point TEXT,
		area REAL,
		width REAL,
		mean_velocity REAL,
		velocity_method TEXT,
		deployment_method TEXT,
		number_of_verticals INTEGER,
		meter_manufacturer TEXT,
		meter_model TEXT,
		meter_serial TEXT,
		meter_firmware TEXT,
		meter_software TEXT,
		meter_type TEXT,
		meter_configuration TEXT
	);

	CREATE TABLE IF NOT EXISTS verticals (
		visit_id INTEGER NOT NULL REFERENCES field_visits(id) ON DELETE CASCADE,
		sequence_number INTEGER NOT NULL,
		tagline_position REAL,
		measurement_time DATETIME NOT NULL,
		effective_depth REAL NOT NULL,
		mean_velocity REAL NOT NULL,
		area REAL NOT NULL,
		discharge REAL NOT NULL,
		width REAL NOT NULL,
		discharge_portion REAL NOT NULL,
		velocity_method TEXT NOT NULL,
		point_count INTEGER NOT NULL,
		comments TEXT,
		UNIQUE(visit_id, sequence_number)
	);

	CREATE TABLE IF NOT EXISTS velocity_observations (
		visit_id INTEGER NOT NULL REFERENCES field_visits(id) ON DELETE CASCADE,
		sequence_number INTEGER NOT NULL,
		depth REAL NOT NULL,
		observation_interval REAL,
		revolution_count INTEGER NOT NULL,
		velocity REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS readings (
		visit_id INTEGER NOT NULL REFERENCES field_visits(id) ON DELETE CASCADE,
		kind TEXT NOT NULL,
		parameter TEXT NOT NULL,
		unit TEXT NOT NULL,
		value REAL NOT NULL,
		time DATETIME NOT NULL
	);`

// Values of readings.kind
const (
	kindReading     = "reading"
	kindCalibration = "calibration"
	kindGageHeight  = "gage_height"
)

// Parameter of the gage height rows in readings
const parameterGageHeight = "GageHeight"

// NewSQLiteVisitRepository creates and initializes a new SQLite repository
func NewSQLiteVisitRepository(dbPath string, logger *slog.Logger) (*SQLiteVisitRepository, error) {
	if dbPath == "" {
		dbPath = filepath.Join("data", "qreview.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	logger.Info("Opening database", "path", dbPath)
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &SQLiteVisitRepository{
		db:     db,
		DBPath: dbPath,
		logger: logger,
	}, nil
}

// Close closes the database connection
func (r *SQLiteVisitRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SaveVisit stores a field visit, replacing any visit with the same key
func (r *SQLiteVisitRepository) SaveVisit(visit *entities.FieldVisit) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if visit.ImportedAt.IsZero() {
		visit.ImportedAt = time.Now()
	}

	err = tx.QueryRow(`
		INSERT INTO field_visits(visit_key, location, start_time, end_time, source_name, imported_at)
		VALUES(?, ?, ?, ?, ?, ?)
		ON CONFLICT(visit_key) DO UPDATE SET
		location=excluded.location,
		start_time=excluded.start_time,
		end_time=excluded.end_time,
		source_name=excluded.source_name,
		imported_at=excluded.imported_at
		RETURNING id`,
		visit.Key,
		visit.Location.Identifier,
		visit.Start.UTC(),
		visit.End.UTC(),
		visit.SourceName,
		visit.ImportedAt.UTC(),
	).Scan(&visit.ID)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to save visit %s: %w", visit.Key, err)
	}

	// A re-import replaces everything recorded for the visit.
	for _, table := range []string{"discharge_activities", "verticals", "velocity_observations", "readings"} {
		if _, err := tx.Exec("DELETE FROM "+table+" WHERE visit_id = ?", visit.ID); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to clear %s of visit %s: %w", table, visit.Key, err)
		}
	}

	if visit.Activity != nil {
		if err := saveActivity(tx, visit.ID, visit.Activity); err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := saveReadings(tx, visit); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.logger.Info("Saved field visit", "key", visit.Key, "location", visit.Location.Identifier, "id", visit.ID)
	return nil
}

func saveActivity(tx *sql.Tx, visitID int64, a *entities.DischargeActivity) error {
	var (
		method, startPoint, velocityMethod, deployment string
		area, width, meanVelocity                      *float64
		numberOfVerticals                              *int
		meter                                          entities.MeterCalibration
	)
	if s := a.Section; s != nil {
		method = string(s.DischargeMethod)
		startPoint = string(s.StartPoint)
		velocityMethod = string(s.VelocityObservationMethod)
		deployment = s.DeploymentMethod
		area, width, meanVelocity = s.Area, s.Width, s.MeanVelocity
		numberOfVerticals = s.NumberOfVerticals
		meter = s.MeterCalibration
	}

	_, err := tx.Exec(`
		INSERT INTO discharge_activities(visit_id, discharge, discharge_unit, party, comments, measurement_id,
			uncertainty, uncertainty_type, qa_comments, grade, discharge_method, start_point,
			area, width, mean_velocity, velocity_method, deployment_method, number_of_verticals,
			meter_manufacturer, meter_model, meter_serial, meter_firmware, meter_software, meter_type, meter_configuration)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		visitID, a.Discharge, a.DischargeUnitID, a.Party, a.Comments, a.MeasurementID,
		a.QuantitativeUncertainty, string(a.ActiveUncertaintyType), a.QualityAssuranceComments, gradeText(a.Grade),
		method, startPoint, area, width, meanVelocity, velocityMethod, deployment, numberOfVerticals,
		meter.Manufacturer, meter.Model, meter.SerialNumber, meter.FirmwareVersion, meter.SoftwareVersion,
		meter.MeterType, meter.Configuration,
	)
	if err != nil {
		return fmt.Errorf("failed to insert discharge activity: %w", err)
	}

	if err := saveGageHeights(tx, visitID, a.GageHeights); err != nil {
		return err
	}

	if a.Section == nil || len(a.Section.Verticals) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(`
		INSERT INTO verticals(visit_id, sequence_number, tagline_position, measurement_time, effective_depth,
			mean_velocity, area, discharge, width, discharge_portion, velocity_method, point_count, comments)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	obsStmt, err := tx.Prepare(`
		INSERT INTO velocity_observations(visit_id, sequence_number, depth, observation_interval, revolution_count, velocity)
		VALUES(?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer obsStmt.Close()

	for _, v := range a.Section.Verticals {
		_, err := stmt.Exec(
			visitID,
			v.SequenceNumber,
			v.TaglinePosition,
			v.MeasurementTime.UTC(),
			v.EffectiveDepth,
			v.Velocity.MeanVelocity,
			v.Segment.Area,
			v.Segment.Discharge,
			v.Segment.Width,
			v.Segment.TotalDischargePortion,
			string(v.Velocity.Method),
			len(v.Velocity.Observations),
			v.Comments,
		)
		if err != nil {
			return fmt.Errorf("failed to insert vertical %d: %w", v.SequenceNumber, err)
		}

		for _, o := range v.Velocity.Observations {
			if _, err := obsStmt.Exec(visitID, v.SequenceNumber, o.Depth, o.ObservationInterval, o.RevolutionCount, o.Velocity); err != nil {
				return fmt.Errorf("failed to insert velocity observation of vertical %d: %w", v.SequenceNumber, err)
			}
		}
	}
	return nil
}

func saveGageHeights(tx *sql.Tx, visitID int64, heights []entities.GageHeightMeasurement) error {
	for _, h := range heights {
		_, err := tx.Exec(`
			INSERT INTO readings(visit_id, kind, parameter, unit, value, time)
			VALUES(?, ?, ?, ?, ?, ?)`,
			visitID, kindGageHeight, parameterGageHeight, h.UnitID, h.Value, h.Time.UTC())
		if err != nil {
			return fmt.Errorf("failed to insert gage height: %w", err)
		}
	}
	return nil
}

func saveReadings(tx *sql.Tx, visit *entities.FieldVisit) error {
	if len(visit.Readings) == 0 && len(visit.Calibrations) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(`
		INSERT INTO readings(visit_id, kind, parameter, unit, value, time)
		VALUES(?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, rd := range visit.Readings {
		if _, err := stmt.Exec(visit.ID, kindReading, rd.Parameter, rd.UnitID, rd.Value, rd.Time.UTC()); err != nil {
			return fmt.Errorf("failed to insert reading %s: %w", rd.Parameter, err)
		}
	}
	for _, c := range visit.Calibrations {
		if _, err := stmt.Exec(visit.ID, kindCalibration, c.Parameter, c.UnitID, c.Value, c.Time.UTC()); err != nil {
			return fmt.Errorf("failed to insert calibration %s: %w", c.Parameter, err)
		}
	}
	return nil
}

func gradeText(g *entities.Grade) string {
	switch {
	case g == nil:
		return ""
	case g.Code != nil:
		return strconv.Itoa(*g.Code)
	default:
		return g.DisplayName
	}
}

// GetLocations returns all location identifiers with at least one visit
func (r *SQLiteVisitRepository) GetLocations() ([]string, error) {
	rows, err := r.db.Query("SELECT DISTINCT location FROM field_visits ORDER BY location")
	if err != nil {
		return nil, fmt.Errorf("failed to query locations: %w", err)
	}
	defer rows.Close()

	var locations []string
	for rows.Next() {
		var location string
		if err := rows.Scan(&location); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		locations = append(locations, location)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return locations, nil
}

const visitSummarySQL = `
	SELECT v.id, v.visit_key, v.location, v.start_time, v.end_time,
		COALESCE(a.discharge, 0), COALESCE(a.discharge_unit, ''), COALESCE(a.party, ''), COALESCE(a.grade, ''),
		(SELECT COUNT(*) FROM verticals vt WHERE vt.visit_id = v.id), a.number_of_verticals,
		COALESCE(a.meter_manufacturer, ''), COALESCE(a.meter_model, ''), COALESCE(a.meter_serial, ''),
		COALESCE(a.meter_firmware, ''), COALESCE(a.meter_software, ''), COALESCE(a.meter_type, ''),
		COALESCE(a.meter_configuration, ''),
		COALESCE(v.source_name, ''), v.imported_at
	FROM field_visits v
	LEFT JOIN discharge_activities a ON a.visit_id = v.id`

type scanner interface {
	Scan(dest ...any) error
}

func scanVisitSummary(row scanner) (entities.VisitSummary, error) {
	var (
		vs                entities.VisitSummary
		numberOfVerticals sql.NullInt64
	)
	err := row.Scan(
		&vs.ID,
		&vs.Key,
		&vs.LocationIdentifier,
		&vs.Start,
		&vs.End,
		&vs.Discharge,
		&vs.DischargeUnitID,
		&vs.Party,
		&vs.Grade,
		&vs.VerticalCount,
		&numberOfVerticals,
		&vs.Meter.Manufacturer,
		&vs.Meter.Model,
		&vs.Meter.SerialNumber,
		&vs.Meter.FirmwareVersion,
		&vs.Meter.SoftwareVersion,
		&vs.Meter.MeterType,
		&vs.Meter.Configuration,
		&vs.SourceName,
		&vs.ImportedAt,
	)
	if numberOfVerticals.Valid {
		n := int(numberOfVerticals.Int64)
		vs.NumberOfVerticals = &n
	}
	return vs, err
}

// GetVisitsByLocation returns the most recent visits of a location, newest first
func (r *SQLiteVisitRepository) GetVisitsByLocation(identifier string, limit int) ([]entities.VisitSummary, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Query(visitSummarySQL+`
		WHERE v.location = ?
		ORDER BY v.start_time DESC
		LIMIT ?`, identifier, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query visits for %s: %w", identifier, err)
	}
	defer rows.Close()

	var result []entities.VisitSummary
	for rows.Next() {
		vs, err := scanVisitSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, vs)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return result, nil
}

// GetVisitByKey returns the visit with the given key
func (r *SQLiteVisitRepository) GetVisitByKey(key string) (*entities.VisitSummary, error) {
	vs, err := scanVisitSummary(r.db.QueryRow(visitSummarySQL+" WHERE v.visit_key = ?", key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVisitNotFound
		}
		return nil, fmt.Errorf("failed to query visit %s: %w", key, err)
	}

	vs.GageHeights, err = r.getGageHeights(vs.ID)
	if err != nil {
		return nil, err
	}
	return &vs, nil
}

func (r *SQLiteVisitRepository) getGageHeights(visitID int64) ([]entities.GageHeightMeasurement, error) {
	rows, err := r.db.Query(`
		SELECT value, unit, time FROM readings
		WHERE visit_id = ? AND kind = ?
		ORDER BY time, rowid`, visitID, kindGageHeight)
	if err != nil {
		return nil, fmt.Errorf("failed to query gage heights: %w", err)
	}
	defer rows.Close()

	var result []entities.GageHeightMeasurement
	for rows.Next() {
		var h entities.GageHeightMeasurement
		if err := rows.Scan(&h.Value, &h.UnitID, &h.Time); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return result, nil
}

// GetVerticals returns the verticals of a visit in stored order
func (r *SQLiteVisitRepository) GetVerticals(key string) ([]entities.VerticalObservation, error) {
	rows, err := r.db.Query(`
		SELECT vt.sequence_number, vt.tagline_position, vt.measurement_time, vt.effective_depth,
			vt.mean_velocity, vt.area, vt.discharge, vt.width, vt.discharge_portion, vt.velocity_method,
			COALESCE(vt.comments, '')
		FROM verticals vt
		JOIN field_visits v ON v.id = vt.visit_id
		WHERE v.visit_key = ?
		ORDER BY vt.rowid`, key)
	if err != nil {
		return nil, fmt.Errorf("failed to query verticals for %s: %w", key, err)
	}
	defer rows.Close()

	var result []entities.VerticalObservation
	for rows.Next() {
		var (
			v        entities.VerticalObservation
			position sql.NullFloat64
			method   string
		)
		if err := rows.Scan(
			&v.SequenceNumber,
			&position,
			&v.MeasurementTime,
			&v.EffectiveDepth,
			&v.Velocity.MeanVelocity,
			&v.Segment.Area,
			&v.Segment.Discharge,
			&v.Segment.Width,
			&v.Segment.TotalDischargePortion,
			&method,
			&v.Comments,
		); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if position.Valid {
			v.TaglinePosition = &position.Float64
		}
		v.Velocity.Method = entities.PointVelocityObservationType(method)
		v.Segment.Velocity = v.Velocity.MeanVelocity
		result = append(result, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	if err := r.attachObservations(key, result); err != nil {
		return nil, err
	}
	return result, nil
}

// attachObservations loads the velocity samples of each vertical in stored order.
func (r *SQLiteVisitRepository) attachObservations(key string, verticals []entities.VerticalObservation) error {
	if len(verticals) == 0 {
		return nil
	}

	index := make(map[int]int, len(verticals))
	for i, v := range verticals {
		index[v.SequenceNumber] = i
	}

	rows, err := r.db.Query(`
		SELECT o.sequence_number, o.depth, o.observation_interval, o.revolution_count, o.velocity
		FROM velocity_observations o
		JOIN field_visits v ON v.id = o.visit_id
		WHERE v.visit_key = ?
		ORDER BY o.rowid`, key)
	if err != nil {
		return fmt.Errorf("failed to query velocity observations for %s: %w", key, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			seq      int
			o        entities.VelocityDepthObservation
			interval sql.NullFloat64
		)
		if err := rows.Scan(&seq, &o.Depth, &interval, &o.RevolutionCount, &o.Velocity); err != nil {
			return fmt.Errorf("failed to scan row: %w", err)
		}
		if interval.Valid {
			o.ObservationInterval = &interval.Float64
		}
		if i, ok := index[seq]; ok {
			verticals[i].Velocity.Observations = append(verticals[i].Velocity.Observations, o)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error during row iteration: %w", err)
	}
	return nil
}

// GetLastImportTime returns when the most recent visit was imported
func (r *SQLiteVisitRepository) GetLastImportTime() (time.Time, error) {
	var importedAt time.Time
	err := r.db.QueryRow("SELECT imported_at FROM field_visits ORDER BY imported_at DESC LIMIT 1").Scan(&importedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, nil // Zero time if nothing was imported yet
		}
		return time.Time{}, fmt.Errorf("failed to get last import time: %w", err)
	}
	return importedAt, nil
}
