package database

import (
	"fmt"
	"strconv"
	"strings"

	"stegodb/pkg/repl"
)

// DatabaseRepl creates a REPL exposing the database's index commands.
func DatabaseRepl(db *Database) *repl.REPL {
	r := repl.NewRepl()
	r.AddCommand("create", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return HandleCreateIndex(db, payload)
	}, "Create an index. usage: create index <index>")

	r.AddCommand("find", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return HandleFind(db, payload)
	}, "Find an element. usage: find <key> from <index>")

	r.AddCommand("insert", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return "", HandleInsert(db, payload)
	}, "Insert an element. usage: insert <key> <value> into <index>")

	r.AddCommand("delete", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return "", HandleDelete(db, payload)
	}, "Delete an element. usage: delete <key> from <index>")

	r.AddCommand("select", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return HandleSelect(db, payload)
	}, "Select all elements of an index. usage: select from <index>")

	r.AddCommand("range", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return HandleSelectRange(db, payload)
	}, "Select elements with keys in [start, end). usage: range <start> <end> from <index>")

	r.AddCommand("pretty", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return HandlePretty(db, payload)
	}, "Print out the internal data representation. usage: pretty from <index>")

	r.AddCommand("verify", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return HandleVerify(db, payload)
	}, "Check the structural invariants of an index. usage: verify <index>")

	return r
}

// HandleCreateIndex handles the create command.
func HandleCreateIndex(d *Database, payload string) (string, error) {
	fields := strings.Fields(payload)
	// Usage: create index <index>
	if len(fields) != 3 || fields[1] != "index" {
		return "", fmt.Errorf("usage: create index <index>")
	}
	indexName := fields[2]
	if _, err := d.CreateIndex(indexName); err != nil {
		return "", err
	}
	return fmt.Sprintf("index %s created.\n", indexName), nil
}

// HandleFind handles the find command.
func HandleFind(d *Database, payload string) (string, error) {
	fields := strings.Fields(payload)
	// Usage: find <key> from <index>
	if len(fields) != 4 || fields[2] != "from" {
		return "", fmt.Errorf("usage: find <key> from <index>")
	}
	key, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return "", fmt.Errorf("find error: %v", err)
	}
	index, err := d.GetIndex(fields[3])
	if err != nil {
		return "", fmt.Errorf("find error: %v", err)
	}
	e, err := index.Find(key)
	if err != nil {
		return "", fmt.Errorf("find error: %v", err)
	}
	return fmt.Sprintf("found entry: (%d, %d)\n", e.Key, e.Value), nil
}

// HandleInsert handles the insert command.
func HandleInsert(d *Database, payload string) error {
	fields := strings.Fields(payload)
	// Usage: insert <key> <value> into <index>
	if len(fields) != 5 || fields[3] != "into" {
		return fmt.Errorf("usage: insert <key> <value> into <index>")
	}
	key, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return fmt.Errorf("insert error: %v", err)
	}
	value, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return fmt.Errorf("insert error: %v", err)
	}
	index, err := d.GetIndex(fields[4])
	if err != nil {
		return fmt.Errorf("insert error: %v", err)
	}
	return index.Insert(key, value)
}

// HandleDelete handles the delete command.
func HandleDelete(d *Database, payload string) error {
	fields := strings.Fields(payload)
	// Usage: delete <key> from <index>
	if len(fields) != 4 || fields[2] != "from" {
		return fmt.Errorf("usage: delete <key> from <index>")
	}
	key, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return fmt.Errorf("delete error: %v", err)
	}
	index, err := d.GetIndex(fields[3])
	if err != nil {
		return fmt.Errorf("delete error: %v", err)
	}
	return index.Delete(key)
}

// HandleSelect handles the select command.
func HandleSelect(d *Database, payload string) (string, error) {
	fields := strings.Fields(payload)
	// Usage: select from <index>
	if len(fields) != 3 || fields[1] != "from" {
		return "", fmt.Errorf("usage: select from <index>")
	}
	index, err := d.GetIndex(fields[2])
	if err != nil {
		return "", fmt.Errorf("select error: %v", err)
	}
	entries, err := index.Select()
	if err != nil {
		return "", fmt.Errorf("select error: %v", err)
	}
	var sb strings.Builder
	for _, e := range entries {
		e.Print(&sb)
	}
	return sb.String(), nil
}

// HandleSelectRange handles the range command.
func HandleSelectRange(d *Database, payload string) (string, error) {
	fields := strings.Fields(payload)
	// Usage: range <start> <end> from <index>
	if len(fields) != 5 || fields[3] != "from" {
		return "", fmt.Errorf("usage: range <start> <end> from <index>")
	}
	start, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return "", fmt.Errorf("range error: %v", err)
	}
	end, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return "", fmt.Errorf("range error: %v", err)
	}
	index, err := d.GetIndex(fields[4])
	if err != nil {
		return "", fmt.Errorf("range error: %v", err)
	}
	entries, err := index.SelectRange(start, end)
	if err != nil {
		return "", fmt.Errorf("range error: %v", err)
	}
	var sb strings.Builder
	for _, e := range entries {
		e.Print(&sb)
	}
	return sb.String(), nil
}

// HandlePretty handles the pretty command.
func HandlePretty(d *Database, payload string) (string, error) {
	fields := strings.Fields(payload)
	// Usage: pretty from <index>
	if len(fields) != 3 || fields[1] != "from" {
		return "", fmt.Errorf("usage: pretty from <index>")
	}
	index, err := d.GetIndex(fields[2])
	if err != nil {
		return "", fmt.Errorf("pretty error: %v", err)
	}
	var sb strings.Builder
	index.Print(&sb)
	return sb.String(), nil
}

// HandleVerify handles the verify command.
func HandleVerify(d *Database, payload string) (string, error) {
	fields := strings.Fields(payload)
	// Usage: verify <index>
	if len(fields) != 2 {
		return "", fmt.Errorf("usage: verify <index>")
	}
	index, err := d.GetIndex(fields[1])
	if err != nil {
		return "", fmt.Errorf("verify error: %v", err)
	}
	if err := index.Verify(); err != nil {
		return "", err
	}
	return "ok\n", nil
}
