package database

import (
	"strings"
	"testing"
)

func TestBuildListQuery_BasicSelect(t *testing.T) {
	opts := NewListQueryOptions("courses")
	query, args := BuildListQuery(opts)

	expected := `SELECT * FROM "courses"`
	if query != expected {
		t.Errorf("Expected query %q, got %q", expected, query)
	}
	if len(args) != 0 {
		t.Errorf("Expected 0 args, got %d", len(args))
	}
}

func TestBuildListQuery_WithColumns(t *testing.T) {
	opts := NewListQueryOptions("courses",
		WithColumns("id", "title", "status"),
	)
	query, args := BuildListQuery(opts)

	expected := `SELECT "id", "title", "status" FROM "courses"`
	if query != expected {
		t.Errorf("Expected query %q, got %q", expected, query)
	}
	if len(args) != 0 {
		t.Errorf("Expected 0 args, got %d", len(args))
	}
}

func TestBuildListQuery_WithQualifiedColumns(t *testing.T) {
	opts := NewListQueryOptions("courses",
		WithColumns("courses.id", "courses.title", "lessons.name"),
	)
	query, args := BuildListQuery(opts)

	expected := `SELECT "courses"."id", "courses"."title", "lessons"."name" FROM "courses"`
	if query != expected {
		t.Errorf("Expected query %q, got %q", expected, query)
	}
	if len(args) != 0 {
		t.Errorf("Expected 0 args, got %d", len(args))
	}
}

func TestBuildListQuery_CountOnly(t *testing.T) {
	opts := NewListQueryOptions("courses",
		WithCountOnly(),
		WithCondition(WhereCond("status", Equal, "published")),
	)
	query, args := BuildListQuery(opts)

	expected := `SELECT COUNT(*) FROM "courses" WHERE "status" = $1`
	if query != expected {
		t.Errorf("Expected query %q, got %q", expected, query)
	}
	if len(args) != 1 || args[0] != "published" {
		t.Errorf("Expected args [published], got %v", args)
	}
}

func TestBuildListQuery_WhereEqual(t *testing.T) {
	opts := NewListQueryOptions("courses",
		WithCondition(WhereCond("status", Equal, "published")),
		WithCondition(WhereCond("price_cents", GreaterThan, 0)),
	)
	query, args := BuildListQuery(opts)

	expected := `SELECT * FROM "courses" WHERE "status" = $1 AND "price_cents" > $2`
	if query != expected {
		t.Errorf("Expected query %q, got %q", expected, query)
	}
	if len(args) != 2 || args[0] != "published" || args[1] != 0 {
		t.Errorf("Expected args [published, 0], got %v", args)
	}
}

func TestBuildListQuery_WhereLike(t *testing.T) {
	opts := NewListQueryOptions("courses",
		WithCondition(WhereCond("title", ILike, "%go%")),
	)
	query, args := BuildListQuery(opts)

	expected := `SELECT * FROM "courses" WHERE "title" ILIKE $1`
	if query != expected {
		t.Errorf("Expected query %q, got %q", expected, query)
	}
	if len(args) != 1 || args[0] != "%go%" {
		t.Errorf("Expected args [%%go%%], got %v", args)
	}
}

func TestBuildListQuery_WhereIn_StringSlice(t *testing.T) {
	opts := NewListQueryOptions("courses",
		WithCondition(WhereCond("status", In, []string{"draft", "published", "archived"})),
	)
	query, args := BuildListQuery(opts)

	expected := `SELECT * FROM "courses" WHERE "status" IN ($1, $2, $3)`
	if query != expected {
		t.Errorf("Expected query %q, got %q", expected, query)
	}
	if len(args) != 3 || args[0] != "draft" || args[1] != "published" || args[2] != "archived" {
		t.Errorf("Expected args [draft, published, archived], got %v", args)
	}
}

func TestBuildListQuery_WhereAny_StringSlice(t *testing.T) {
	opts := NewListQueryOptions("courses",
		WithCondition(WhereCond("status", Any, []string{"draft", "published"})),
	)
	query, args := BuildListQuery(opts)

	expected := `SELECT * FROM "courses" WHERE "status" = ANY (ARRAY[$1, $2])`
	if query != expected {
		t.Errorf("Expected query %q, got %q", expected, query)
	}
	if len(args) != 2 || args[0] != "draft" || args[1] != "published" {
		t.Errorf("Expected args [draft, published], got %v", args)
	}
}

func TestBuildListQuery_WhereCustom_MultipleParams(t *testing.T) {
	opts := NewListQueryOptions("courses",
		WithCondition(WhereRawCond("price_cents BETWEEN $1 AND $2", 1000, 5000)),
	)
	query, args := BuildListQuery(opts)

	expected := `SELECT * FROM "courses" WHERE price_cents BETWEEN $1 AND $2`
	if query != expected {
		t.Errorf("Expected query %q, got %q", expected, query)
	}
	if len(args) != 2 || args[0] != 1000 || args[1] != 5000 {
		t.Errorf("Expected args [1000, 5000], got %v", args)
	}
}

func TestBuildListQuery_WhereCustom_RepeatedPlaceholder(t *testing.T) {
	opts := NewListQueryOptions("courses",
		WithCondition(WhereRawCond("(price_cents > $1 OR fail_count > $1)", 100)),
	)
	query, args := BuildListQuery(opts)

	expected := `SELECT * FROM "courses" WHERE (price_cents > $1 OR fail_count > $1)`
	if query != expected {
		t.Errorf("Expected query %q, got %q", expected, query)
	}
	if len(args) != 1 || args[0] != 100 {
		t.Errorf("Expected args [100], got %v", args)
	}
}

func TestBuildListQuery_WhereCustom_HighNumberedPlaceholder(t *testing.T) {
	opts := NewListQueryOptions("courses",
		WithCondition(WhereCond("status", Equal, "published")),
		WithCondition(WhereRawCond("price_cents > $1", 50)),
	)
	query, args := BuildListQuery(opts)

	expected := `SELECT * FROM "courses" WHERE "status" = $1 AND price_cents > $2`
	if query != expected {
		t.Errorf("Expected query %q, got %q", expected, query)
	}
	if len(args) != 2 || args[0] != "published" || args[1] != 50 {
		t.Errorf("Expected args [published, 50], got %v", args)
	}
}

func TestBuildListQuery_OrderBy(t *testing.T) {
	opts := NewListQueryOptions("courses",
		WithOrderBy("created_at", "DESC"),
	)
	query, args := BuildListQuery(opts)

	expected := `SELECT * FROM "courses" ORDER BY "created_at" DESC`
	if query != expected {
		t.Errorf("Expected query %q, got %q", expected, query)
	}
	if len(args) != 0 {
		t.Errorf("Expected 0 args, got %d", len(args))
	}
}

func TestBuildListQuery_OrderBy_QualifiedColumn(t *testing.T) {
	opts := NewListQueryOptions("courses",
		WithOrderBy("courses.created_at", "ASC"),
	)
	query, args := BuildListQuery(opts)

	expected := `SELECT * FROM "courses" ORDER BY "courses"."created_at" ASC`
	if query != expected {
		t.Errorf("Expected query %q, got %q", expected, query)
	}
	if len(args) != 0 {
		t.Errorf("Expected 0 args, got %d", len(args))
	}
}

func TestBuildListQuery_LimitOffset(t *testing.T) {
	opts := NewListQueryOptions("courses",
		WithLimit(10),
		WithOffset(20),
	)
	query, args := BuildListQuery(opts)

	expected := `SELECT * FROM "courses" LIMIT $1 OFFSET $2`
	if query != expected {
		t.Errorf("Expected query %q, got %q", expected, query)
	}
	if len(args) != 2 || args[0] != 10 || args[1] != 20 {
		t.Errorf("Expected args [10, 20], got %v", args)
	}
}

func TestBuildListQuery_ComplexQuery(t *testing.T) {
	opts := NewListQueryOptions("courses",
		WithColumns("id", "title", "status"),
		WithCondition(WhereCond("status", Equal, "published")),
		WithCondition(WhereCond("title", ILike, "%go%")),
		WithCondition(WhereRawCond("created_at > $1", "2024-01-01")),
		WithOrderBy("created_at", "DESC"),
		WithLimit(50),
		WithOffset(0),
	)
	query, args := BuildListQuery(opts)

	expected := `SELECT "id", "title", "status" FROM "courses" WHERE "status" = $1 AND "title" ILIKE $2 AND created_at > $3 ORDER BY "created_at" DESC LIMIT $4 OFFSET $5`
	if query != expected {
		t.Errorf("Expected query %q, got %q", expected, query)
	}
	if len(args) != 5 {
		t.Errorf("Expected 5 args, got %d: %v", len(args), args)
	}
}

func TestBuildListQuery_SQLInjectionPrevention(t *testing.T) {
	// Attempt SQL injection via table name
	opts := NewListQueryOptions("courses; DROP TABLE courses;--")
	query, _ := BuildListQuery(opts)

	// Should be properly quoted as a single identifier, making it harmless
	expected := `SELECT * FROM "courses; DROP TABLE courses;--"`
	if query != expected {
		t.Errorf("Expected %q, got %q", expected, query)
	}
	if !strings.Contains(query, `"courses; DROP TABLE courses;--"`) {
		t.Errorf("Table name not properly quoted: %q", query)
	}
}
