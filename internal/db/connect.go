package db

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	"github.com/pkg/errors"
	_ "modernc.org/sqlite" // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// ParseDriver maps common aliases to a Driver.
func ParseDriver(s string) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sqlite", "sqlite3":
		return DriverSQLite, nil
	case "postgres", "pg", "pgx", "pgsql":
		return DriverPostgres, nil
	}
	return "", errors.Errorf("unsupported driver: %s", s)
}

// Open opens a DB, tunes the pool and ensures schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:headlessquiz.db?mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/headlessquiz?sslmode=disable"
		}
	default:
		return nil, errors.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "db: open")
	}
	tunePool(driver, db)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "db: ping")
	}
	if driver == DriverSQLite {
		if err := applySQLitePragmas(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := ensureSchema(ctx, db, driver); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "db: schema")
	}
	return db, nil
}

// tunePool keeps SQLite to a single connection: one writer, and an
// in-memory database lives only as long as its connection.
func tunePool(driver Driver, db *sql.DB) {
	maxOpen := 20
	maxIdle := 10
	connLife := 45 * time.Minute
	idleLife := 15 * time.Minute

	if driver == DriverSQLite {
		maxOpen = 1
		maxIdle = 1
		connLife = 0
		idleLife = 0
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(connLife)
	db.SetConnMaxIdleTime(idleLife)
}

func applySQLitePragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON;",
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA busy_timeout = 5000;",
		"PRAGMA temp_store = MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return errors.Wrapf(err, "db: sqlite pragma %q", p)
		}
	}
	return nil
}

func ensureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS users (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  username TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL DEFAULT '',
  role TEXT NOT NULL DEFAULT 'student',
  deleted INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS enrolments (
  user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  course_id INTEGER NOT NULL,
  PRIMARY KEY (user_id, course_id)
);

CREATE TABLE IF NOT EXISTS course_modules (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  course_id INTEGER NOT NULL,
  modname TEXT NOT NULL,
  instance INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS quizzes (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  course_id INTEGER NOT NULL,
  name TEXT NOT NULL,
  grade REAL NOT NULL DEFAULT 10,
  grade_method TEXT NOT NULL DEFAULT 'highest',
  attempt_on_last INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS quiz_feedback (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  quiz_id INTEGER NOT NULL REFERENCES quizzes(id) ON DELETE CASCADE,
  text TEXT NOT NULL,
  min_grade REAL NOT NULL,
  max_grade REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS question_categories (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  parent_id INTEGER NOT NULL DEFAULT 0,
  name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  category_id INTEGER NOT NULL,
  name TEXT NOT NULL,
  text TEXT NOT NULL DEFAULT '',
  qtype TEXT NOT NULL,
  options_json TEXT NOT NULL DEFAULT '',
  answers_json TEXT NOT NULL DEFAULT '',
  random_category_id INTEGER,
  random_include_sub INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS quiz_slots (
  quiz_id INTEGER NOT NULL REFERENCES quizzes(id) ON DELETE CASCADE,
  slot INTEGER NOT NULL,
  page INTEGER NOT NULL DEFAULT 1,
  question_id INTEGER NOT NULL REFERENCES questions(id),
  max_mark REAL NOT NULL DEFAULT 1,
  PRIMARY KEY (quiz_id, slot)
);

CREATE TABLE IF NOT EXISTS grade_items (
  course_id INTEGER NOT NULL,
  quiz_id INTEGER NOT NULL,
  grade_max REAL NOT NULL,
  grade_pass REAL NOT NULL DEFAULT 0,
  PRIMARY KEY (course_id, quiz_id)
);

CREATE TABLE IF NOT EXISTS quiz_attempts (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  quiz_id INTEGER NOT NULL REFERENCES quizzes(id) ON DELETE CASCADE,
  user_id INTEGER NOT NULL,
  attempt INTEGER NOT NULL,
  state TEXT NOT NULL,
  time_start INTEGER NOT NULL,
  time_finish INTEGER NOT NULL DEFAULT 0,
  time_modified INTEGER NOT NULL,
  sum_grades REAL,
  UNIQUE (quiz_id, user_id, attempt)
);

CREATE TABLE IF NOT EXISTS question_attempts (
  attempt_id INTEGER NOT NULL REFERENCES quiz_attempts(id) ON DELETE CASCADE,
  slot INTEGER NOT NULL,
  question_id INTEGER NOT NULL,
  max_mark REAL NOT NULL,
  state TEXT NOT NULL,
  fraction REAL,
  response_json TEXT NOT NULL DEFAULT '',
  feedback TEXT NOT NULL DEFAULT '',
  sequence_check INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (attempt_id, slot)
);

CREATE TABLE IF NOT EXISTS event_log (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,                         -- e.g., AttemptStarted
  key TEXT NOT NULL,                         -- natural key: attempt id
  data TEXT NOT NULL,                        -- JSON payload
  created_at INTEGER NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS users (
  id BIGSERIAL PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL DEFAULT '',
  role TEXT NOT NULL DEFAULT 'student',
  deleted INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS enrolments (
  user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  course_id BIGINT NOT NULL,
  PRIMARY KEY (user_id, course_id)
);

CREATE TABLE IF NOT EXISTS course_modules (
  id BIGSERIAL PRIMARY KEY,
  course_id BIGINT NOT NULL,
  modname TEXT NOT NULL,
  instance BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS quizzes (
  id BIGSERIAL PRIMARY KEY,
  course_id BIGINT NOT NULL,
  name TEXT NOT NULL,
  grade DOUBLE PRECISION NOT NULL DEFAULT 10,
  grade_method TEXT NOT NULL DEFAULT 'highest',
  attempt_on_last INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS quiz_feedback (
  id BIGSERIAL PRIMARY KEY,
  quiz_id BIGINT NOT NULL REFERENCES quizzes(id) ON DELETE CASCADE,
  text TEXT NOT NULL,
  min_grade DOUBLE PRECISION NOT NULL,
  max_grade DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS question_categories (
  id BIGSERIAL PRIMARY KEY,
  parent_id BIGINT NOT NULL DEFAULT 0,
  name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
  id BIGSERIAL PRIMARY KEY,
  category_id BIGINT NOT NULL,
  name TEXT NOT NULL,
  text TEXT NOT NULL DEFAULT '',
  qtype TEXT NOT NULL,
  options_json TEXT NOT NULL DEFAULT '',
  answers_json TEXT NOT NULL DEFAULT '',
  random_category_id BIGINT,
  random_include_sub INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS quiz_slots (
  quiz_id BIGINT NOT NULL REFERENCES quizzes(id) ON DELETE CASCADE,
  slot INTEGER NOT NULL,
  page INTEGER NOT NULL DEFAULT 1,
  question_id BIGINT NOT NULL REFERENCES questions(id),
  max_mark DOUBLE PRECISION NOT NULL DEFAULT 1,
  PRIMARY KEY (quiz_id, slot)
);

CREATE TABLE IF NOT EXISTS grade_items (
  course_id BIGINT NOT NULL,
  quiz_id BIGINT NOT NULL,
  grade_max DOUBLE PRECISION NOT NULL,
  grade_pass DOUBLE PRECISION NOT NULL DEFAULT 0,
  PRIMARY KEY (course_id, quiz_id)
);

CREATE TABLE IF NOT EXISTS quiz_attempts (
  id BIGSERIAL PRIMARY KEY,
  quiz_id BIGINT NOT NULL REFERENCES quizzes(id) ON DELETE CASCADE,
  user_id BIGINT NOT NULL,
  attempt INTEGER NOT NULL,
  state TEXT NOT NULL,
  time_start BIGINT NOT NULL,
  time_finish BIGINT NOT NULL DEFAULT 0,
  time_modified BIGINT NOT NULL,
  sum_grades DOUBLE PRECISION,
  UNIQUE (quiz_id, user_id, attempt)
);

CREATE TABLE IF NOT EXISTS question_attempts (
  attempt_id BIGINT NOT NULL REFERENCES quiz_attempts(id) ON DELETE CASCADE,
  slot INTEGER NOT NULL,
  question_id BIGINT NOT NULL,
  max_mark DOUBLE PRECISION NOT NULL,
  state TEXT NOT NULL,
  fraction DOUBLE PRECISION,
  response_json TEXT NOT NULL DEFAULT '',
  feedback TEXT NOT NULL DEFAULT '',
  sequence_check INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (attempt_id, slot)
);

CREATE TABLE IF NOT EXISTS event_log (
  seq BIGSERIAL PRIMARY KEY,
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,
  key TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at BIGINT NOT NULL
);
`
