package gobolt

import "testing"

func TestNormalizeQuery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"string literal", "MATCH (p:Person {name: 'alice'}) RETURN p", "MATCH (p:Person {name: '?'}) RETURN p"},
		{"double quoted literal", `MATCH (p:Person {name: "alice"}) RETURN p`, "MATCH (p:Person {name: '?'}) RETURN p"},
		{"escaped quote", "WHERE name = 'it''s'", "WHERE name = '?'"},
		{"numeric literal", "MATCH (p:Person) WHERE p.age = 42 RETURN p", "MATCH (p:Person) WHERE p.age = ? RETURN p"},
		{"float literal", "WHERE score > 3.14", "WHERE score > ?"},
		{"named param kept", "MATCH (p:Person {id: $id}) RETURN p", "MATCH (p:Person {id: $id}) RETURN p"},
		{"in list", "WHERE id IN [1, 2, 3]", "WHERE id IN [?, ?, ?]"},
		{"mixed", "WHERE p.age = 42 AND p.name = 'bob' AND p.id = $id", "WHERE p.age = ? AND p.name = '?' AND p.id = $id"},
		{"whitespace collapse", "MATCH  (p)\n\tRETURN  p", "MATCH (p) RETURN p"},
		{"leading trailing space", "  RETURN 1  ", "RETURN ?"},
		{"no replace in identifier", "RETURN p1.id", "RETURN p1.id"},
		{"negative number", "WHERE x = -5", "WHERE x = -?"},
		{"multiple string literals", "CREATE (p:Person {a: 'x', b: 'y'})", "CREATE (p:Person {a: '?', b: '?'})"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := NormalizeQuery(tt.in)
			if got != tt.want {
				t.Errorf("NormalizeQuery(%q)\n got  %q\n want %q", tt.in, got, tt.want)
			}
		})
	}
}
