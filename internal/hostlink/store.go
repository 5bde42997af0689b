package hostlink

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/juju/errors"
)

const DefaultTable = "readings"

const schemaFormat = `CREATE TABLE IF NOT EXISTS %s (
	id bigserial PRIMARY KEY,
	sensor_id smallint NOT NULL,
	raw integer NOT NULL,
	sample_count smallint NOT NULL,
	reading double precision NOT NULL,
	taken_at timestamptz NOT NULL
)`

// Store writes readings into Postgres.
type Store struct {
	db    *sql.DB
	table string
}

func NewStore(db *sql.DB, table string) *Store {
	if table == "" {
		table = DefaultTable
	}
	return &Store{db: db, table: pgx.Identifier{table}.Sanitize()}
}

// OpenStore connects via pgx database/sql driver.
func OpenStore(ctx context.Context, dsn, table string) (*Store, error) {
	if dsn == "" {
		return nil, errors.NotValidf("host dsn=empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, errors.Annotate(err, "host store open")
	}
	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Annotate(err, "host store ping")
	}
	return NewStore(db, table), nil
}

func (self *Store) Migrate(ctx context.Context) error {
	_, err := self.db.ExecContext(ctx, fmt.Sprintf(schemaFormat, self.table))
	return errors.Annotate(err, "host store migrate")
}

// Insert stores every reading. Batches sampled faster than 1/s carry
// overlapping timestamps, so (sensor_id, taken_at) is not unique.
func (self *Store) Insert(ctx context.Context, rs ...Reading) error {
	if len(rs) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(self.table)
	b.WriteString(" (sensor_id, raw, sample_count, reading, taken_at) VALUES ")
	args := make([]interface{}, 0, len(rs)*5)
	for i, r := range rs {
		if i > 0 {
			b.WriteString(",")
		}
		n := len(args)
		fmt.Fprintf(&b, "($%d,$%d,$%d,$%d,$%d)", n+1, n+2, n+3, n+4, n+5)
		args = append(args, int(r.SensorID), int(r.Raw), int(r.SampleCount), r.Value, r.TakenAt)
	}
	if _, err := self.db.ExecContext(ctx, b.String(), args...); err != nil {
		return errors.Annotatef(err, "host store insert n=%d", len(rs))
	}
	return nil
}

func (self *Store) Close() error { return self.db.Close() }
