package db

import (
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"
)

// Needs a reachable MySQL; set TRAINLOG_TEST_DSN to run, e.g.
// user1:password1@tcp(db:3306)/agrishield_db
func TestDB(t *testing.T) {
	connInfo := os.Getenv("TRAINLOG_TEST_DSN")
	if connInfo == "" {
		t.Skip("TRAINLOG_TEST_DSN not set")
	}

	tableName := "test_run_tab"
	conn, err := New(Config{
		DriverName: "mysql",
		ConnInfo:   connInfo,
		TableName:  tableName,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Destroy()

	if err := conn.Insert(Item{
		RunID:           "deadbeef",
		DataDir:         "data/plantvillage",
		Classes:         3,
		Epochs:          10,
		FineTuneEpochs:  5,
		BestValAccuracy: 0.91,
		ModelPath:       "model.h5",
		CreateAt:        time.Now(),
	}); err != nil {
		t.Fatal(err)
	}

	db, err := sql.Open("mysql", connInfo)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if _, err := db.Exec(fmt.Sprintf("DROP TABLE %s;", tableName)); err != nil {
		t.Fatal(err)
	}
}
