package migrations

import (
	"io/fs"
	"strings"
	"testing"
)

func TestFS_ContainsSchema(t *testing.T) {
	data, err := fs.ReadFile(FS, "001_portal.sql")
	if err != nil {
		t.Fatalf("read embedded migration: %v", err)
	}
	sql := string(data)
	for _, table := range []string{"doctor", "availability_record", "appointment"} {
		if !strings.Contains(sql, "CREATE TABLE "+table) && !strings.Contains(sql, "CREATE TABLE IF NOT EXISTS "+table) {
			t.Errorf("001_portal.sql does not create %s", table)
		}
	}
}
