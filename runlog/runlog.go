// Package runlog records completed training runs in MySQL when a DSN is
// configured. It is strictly supplementary: trainer exit semantics never
// depend on it.
package runlog

import (
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/agrishield/agrishield-ai/runlog/db"
)

const (
	tableName  = "train_run_tab"
	driverName = "mysql"
)

// Entry describes one training run. RunID is assigned on Record when empty.
type Entry struct {
	RunID           string
	DataDir         string
	Classes         int
	Epochs          int
	FineTuneEpochs  int
	BestValAccuracy float64
	ModelPath       string
}

// Recorder writes run entries to the history table.
type Recorder struct {
	conn *db.DBConn
}

// New connects to the run-history database.
func New(dsn string) (*Recorder, error) {
	conn, err := db.New(db.Config{
		DriverName: driverName,
		ConnInfo:   dsn,
		TableName:  tableName,
	})
	if err != nil {
		return nil, err
	}
	log.Printf("runlog: DB %s initialized", tableName)
	return &Recorder{conn: conn}, nil
}

// Record inserts one run row.
func (r *Recorder) Record(e Entry) error {
	if e.RunID == "" {
		e.RunID = uuid.New().String()[:8]
	}
	return r.conn.Insert(db.Item{
		RunID:           e.RunID,
		DataDir:         e.DataDir,
		Classes:         e.Classes,
		Epochs:          e.Epochs,
		FineTuneEpochs:  e.FineTuneEpochs,
		BestValAccuracy: e.BestValAccuracy,
		ModelPath:       e.ModelPath,
		CreateAt:        time.Now(),
	})
}

// Close releases the connection.
func (r *Recorder) Close() {
	if err := r.conn.Destroy(); err != nil {
		log.Printf("runlog: DB %s close failed: %s", r.conn.TableName, err)
	}
}
