package logger

import "testing"

func TestOperationFromSQL(t *testing.T) {
	cases := map[string]string{
		"SELECT * FROM tasks":                               "SELECT",
		"  insert into teams (id) values (1)":               "INSERT",
		"WITH x AS (SELECT 1) UPDATE tasks SET done = true": "SELECT",
		"(DELETE FROM team_members)":                        "DELETE",
		"SET LOCAL app.current_org_id = '1'":                "UNKNOWN",
		"":                                                  "UNKNOWN",
	}
	for sql, want := range cases {
		if got := operationFromSQL(sql); got != want {
			t.Fatalf("operationFromSQL(%q) = %s, want %s", sql, got, want)
		}
	}
}
