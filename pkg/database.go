package vx2740

import (
	"fmt"
	"sort"

	_ "github.com/go-sql-driver/mysql"
	sqlx "github.com/jmoiron/sqlx" //make alias name the package to sqlx
	_ "github.com/mattn/go-sqlite3"
)

// Matches every frontend in a BoardMap key.
const ANY_FRONTEND = -1

type BoardKey struct {
	FrontendID int
	BoardID    int
}

// BoardSetup tells the pipeline which board slot a digitizer fills and which
// of its channels carries the reference clock.
type BoardSetup struct {
	Index        int
	ClockChannel int
}

type BoardMap map[BoardKey]BoardSetup

// DefaultBoardMap maps boards 0 and 1 of any frontend to slots 0 and 1.
func DefaultBoardMap(clockChannel int) BoardMap {
	return BoardMap{
		{FrontendID: ANY_FRONTEND, BoardID: 0}: {Index: 0, ClockChannel: clockChannel},
		{FrontendID: ANY_FRONTEND, BoardID: 1}: {Index: 1, ClockChannel: clockChannel},
	}
}

// Lookup prefers an entry for the exact frontend over a wildcard one.
func (m BoardMap) Lookup(frontendID int, boardID int) (BoardSetup, bool) {
	if setup, ok := m[BoardKey{FrontendID: frontendID, BoardID: boardID}]; ok {
		return setup, true
	}
	setup, ok := m[BoardKey{FrontendID: ANY_FRONTEND, BoardID: boardID}]
	return setup, ok
}

// Validate checks that every slot 0..numBoards-1 is filled exactly once.
func (m BoardMap) Validate(numBoards int) error {
	seen := make(map[int]BoardKey)
	for key, setup := range m {
		if setup.Index < 0 || setup.Index >= numBoards {
			return fmt.Errorf("board %d/%d mapped to slot %d, expected 0..%d", key.FrontendID, key.BoardID, setup.Index, numBoards-1)
		}
		if setup.ClockChannel < 0 || setup.ClockChannel > 63 {
			return fmt.Errorf("board %d/%d has invalid clock channel %d", key.FrontendID, key.BoardID, setup.ClockChannel)
		}
		if other, ok := seen[setup.Index]; ok {
			return fmt.Errorf("boards %d/%d and %d/%d share slot %d", other.FrontendID, other.BoardID, key.FrontendID, key.BoardID, setup.Index)
		}
		seen[setup.Index] = key
	}
	for i := 0; i < numBoards; i++ {
		if _, ok := seen[i]; !ok {
			return fmt.Errorf("no board mapped to slot %d", i)
		}
	}
	return nil
}

// Keys returns the map keys sorted by slot.
func (m BoardMap) Keys() []BoardKey {
	keys := make([]BoardKey, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return m[keys[i]].Index < m[keys[j]].Index
	})
	return keys
}

func ConnectToDatabase(driver string, user string, pass string, host string, dbname string) (*sqlx.DB, error) {
	switch driver {
	case "", "mysql":
		port := "3306"
		dbURI := fmt.Sprintf("%s:%s@(%s:%s)/%s?parseTime=true", user, pass, host, port, dbname)
		return sqlx.Connect("mysql", dbURI)
	case "sqlite3":
		return sqlx.Connect("sqlite3", fmt.Sprintf("file:%s?mode=ro", dbname))
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

type BoardMappingEntry struct {
	FrontendID   int `db:"FrontendID"`
	BoardID      int `db:"BoardID"`
	BoardIndex   int `db:"BoardIndex"`
	ClockChannel int `db:"ClockChannel"`
}

func GetBoardMapFromDB(db *sqlx.DB, runNumber int) (BoardMap, error) {
	query := db.Rebind("SELECT FrontendID, BoardID, BoardIndex, ClockChannel FROM BoardMapping WHERE MinRun <= ? and MaxRun >= ? ORDER BY BoardIndex")

	var entries []BoardMappingEntry
	if err := db.Select(&entries, query, runNumber, runNumber); err != nil {
		return nil, fmt.Errorf("error querying board mapping: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no board mapping for run %d", runNumber)
	}

	boardMap := make(BoardMap, len(entries))
	for _, entry := range entries {
		boardMap[BoardKey{FrontendID: entry.FrontendID, BoardID: entry.BoardID}] = BoardSetup{
			Index:        entry.BoardIndex,
			ClockChannel: entry.ClockChannel,
		}
	}
	return boardMap, nil
}
