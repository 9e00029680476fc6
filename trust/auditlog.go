package trust

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/letsencrypt/borp"

	_ "github.com/go-sql-driver/mysql"
)

// verificationRecord is one row of the vds_verifications audit table,
// tagged for borp the way the teacher tags its gorp-mapped models
// (sa/model.go): exported fields with `db` tags, one struct per table.
type verificationRecord struct {
	ID            int64     `db:"id"`
	CSCASHA256    string    `db:"csca_sha256"`
	BSCSerialHex  string    `db:"bsc_serial_hex"`
	Outcome       string    `db:"outcome"`
	VerifiedAt    time.Time `db:"verified_at"`
}

// SQLAuditLog records a row per verification attempt to a MySQL table via
// borp, giving an operator a queryable history of which CSCA and BSC
// serial were involved in each outcome.
type SQLAuditLog struct {
	dbMap *borp.DbMap
}

// NewSQLAuditLog opens dataSourceName (a go-sql-driver/mysql DSN) and
// wires a borp.DbMap mapping verificationRecord onto vds_verifications.
func NewSQLAuditLog(dataSourceName string) (*SQLAuditLog, error) {
	db, err := sql.Open("mysql", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("trust: opening audit log database: %w", err)
	}
	dbMap := &borp.DbMap{Db: db, Dialect: borp.MySQLDialect{Engine: "InnoDB", Encoding: "UTF8"}}
	dbMap.AddTableWithName(verificationRecord{}, "vds_verifications").SetKeys(true, "ID")
	return &SQLAuditLog{dbMap: dbMap}, nil
}

// Record inserts one verification outcome row.
func (a *SQLAuditLog) Record(ctx context.Context, cscaSHA256, bscSerialHex, outcome string, at time.Time) error {
	row := &verificationRecord{
		CSCASHA256:   cscaSHA256,
		BSCSerialHex: bscSerialHex,
		Outcome:      outcome,
		VerifiedAt:   at,
	}
	if err := a.dbMap.Insert(row); err != nil {
		return fmt.Errorf("trust: recording verification audit row: %w", err)
	}
	return nil
}

// Close releases the underlying database connection pool.
func (a *SQLAuditLog) Close() error {
	return a.dbMap.Db.Close()
}
