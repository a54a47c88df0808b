// Package db wraps the MySQL table backing the training-run history.
package db

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Config configures a DBConn.
type Config struct {
	DriverName string
	ConnInfo   string

	TableName string
}

// DBConn is one open connection bound to a table.
type DBConn struct {
	DriverName string
	ConnInfo   string

	TableName string

	db *sql.DB
}

// Item is one training-run row.
type Item struct {
	RunID           string
	DataDir         string
	Classes         int
	Epochs          int
	FineTuneEpochs  int
	BestValAccuracy float64
	ModelPath       string
	CreateAt        time.Time
}

func (conn *DBConn) createTable() error {
	_, err := conn.db.Exec(fmt.Sprintf(`CREATE TABLE %s (
		runid CHAR(8) NOT NULL,
		datadir VARCHAR(160) NOT NULL,
		classes INT NOT NULL,
		epochs INT NOT NULL,
		epochsfine INT NOT NULL,
		bestvalacc DOUBLE NOT NULL,
		modelpath VARCHAR(160) NOT NULL,
		createAt DATETIME NOT NULL);`, conn.TableName))
	return err
}

func (conn *DBConn) existsTable() bool {
	if _, err := conn.db.Query(fmt.Sprintf("SELECT * FROM %s;", conn.TableName)); err != nil {
		return false
	}
	return true
}

func (conn *DBConn) initTable() error {
	if !conn.existsTable() {
		log.Printf("Create DB table: %s", conn.TableName)
		return conn.createTable()
	}
	return nil
}

// Insert stores one run row.
func (conn *DBConn) Insert(item Item) error {
	createAt := item.CreateAt.Format(time.RFC3339)

	_, err := conn.db.Exec(fmt.Sprintf(`INSERT INTO %s (
		runid,
		datadir,
		classes,
		epochs,
		epochsfine,
		bestvalacc,
		modelpath,
		createAt) value (?, ?, ?, ?, ?, ?, ?, ?);`, conn.TableName),
		item.RunID, item.DataDir, item.Classes, item.Epochs,
		item.FineTuneEpochs, item.BestValAccuracy, item.ModelPath, createAt,
	)
	return err
}

// Destroy closes the connection.
func (conn *DBConn) Destroy() error {
	return conn.db.Close()
}

// New opens a connection and ensures the table exists.
func New(cfg Config) (*DBConn, error) {
	sqlDB, err := sql.Open(cfg.DriverName, cfg.ConnInfo)
	if err != nil {
		return nil, err
	}

	conn := &DBConn{
		DriverName: cfg.DriverName,
		ConnInfo:   cfg.ConnInfo,
		TableName:  cfg.TableName,
		db:         sqlDB,
	}

	if err := conn.initTable(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return conn, nil
}
