package binder

import (
	"strings"

	"github.com/pg-sharding/shroute/router/statement"
	"github.com/xwb1989/sqlparser"
)

type token struct {
	typ int
	val string
}

// tokens scans sql until the end of input or the first lexer error, skipping comments.
func tokens(sql string, limit int) []token {
	tkn := sqlparser.NewStringTokenizer(sql)
	var ret []token
	for limit <= 0 || len(ret) < limit {
		typ, val := tkn.Scan()
		if typ == 0 || typ == sqlparser.LEX_ERROR {
			break
		}
		if typ == sqlparser.COMMENT {
			continue
		}
		ret = append(ret, token{typ: typ, val: string(val)})
	}
	return ret
}

// leadingWords returns the first n lower-cased tokens of sql, comments skipped.
func leadingWords(sql string, n int) []string {
	toks := tokens(sql, n)
	ret := make([]string, 0, len(toks))
	for _, t := range toks {
		ret = append(ret, strings.ToLower(t.val))
	}
	return ret
}

func hasIfNotExists(kw []string) bool {
	for i := 0; i+2 < len(kw); i++ {
		if kw[i] == "if" && kw[i+1] == "not" && kw[i+2] == "exists" {
			return true
		}
	}
	return false
}

// tableAfterKeyword finds the first [schema.]table identifier following one of the keywords.
func tableAfterKeyword(sql string, keywords ...int) (statement.Table, bool) {
	toks := tokens(sql, 0)
	for i, t := range toks {
		match := false
		for _, k := range keywords {
			if t.typ == k {
				match = true
				break
			}
		}
		if !match || i+1 >= len(toks) || toks[i+1].typ != sqlparser.ID {
			continue
		}
		tbl := statement.Table{Name: strings.ToLower(toks[i+1].val)}
		if i+3 < len(toks) && toks[i+2].typ == '.' && toks[i+3].typ == sqlparser.ID {
			tbl = statement.Table{Schema: toks[i+1].val, Name: strings.ToLower(toks[i+3].val)}
		}
		return tbl, true
	}
	return statement.Table{}, false
}

func showHasTable(typ string) bool {
	switch strings.ToLower(typ) {
	case "create table", "columns", "fields", "index", "indexes", "keys":
		return true
	}
	return false
}

// bindDCL handles account management statements the parser has no grammar for.
func bindDCL(sql string) (*statement.Statement, bool) {
	kw := leadingWords(sql, 2)
	if len(kw) == 0 {
		return nil, false
	}

	switch kw[0] {
	case "grant", "revoke":
	case "create", "drop", "alter", "rename":
		if len(kw) > 1 && (kw[1] == "user" || kw[1] == "role") {
			return &statement.Statement{Type: statement.TypeUserAdmin}, true
		}
		return nil, false
	default:
		return nil, false
	}

	stmt := &statement.Statement{Type: statement.TypeGrant}
	if kw[0] == "revoke" {
		stmt.Type = statement.TypeRevoke
	}

	// GRANT privs ON [TABLE] [schema.]name TO ...; "*" and "schema.*" are instance level.
	toks := tokens(sql, 0)
	for i, t := range toks {
		if t.typ != sqlparser.ON {
			continue
		}
		j := i + 1
		if j < len(toks) && toks[j].typ == sqlparser.TABLE {
			j++
		}
		if j >= len(toks) || toks[j].typ != sqlparser.ID {
			break
		}
		tbl := statement.Table{Name: strings.ToLower(toks[j].val)}
		if j+2 < len(toks) && toks[j+1].typ == '.' {
			if toks[j+2].typ != sqlparser.ID {
				break
			}
			tbl = statement.Table{Schema: toks[j].val, Name: strings.ToLower(toks[j+2].val)}
		}
		stmt.Tables = append(stmt.Tables, tbl)
		break
	}
	return stmt, true
}

// parseHints reads key:value or key=value pairs from comments around the statement.
func parseHints(sql string) map[string]string {
	hints := map[string]string{}
	rest := sql
	for {
		start := strings.Index(rest, "/*")
		if start == -1 {
			break
		}
		end := strings.Index(rest[start+2:], "*/")
		if end == -1 {
			break
		}
		body := rest[start+2 : start+2+end]
		rest = rest[start+2+end+2:]
		if strings.HasPrefix(body, "!") {
			continue
		}
		for _, pair := range strings.FieldsFunc(body, func(r rune) bool { return r == ',' || r == ';' }) {
			k, v, ok := strings.Cut(pair, ":")
			if !ok {
				k, v, ok = strings.Cut(pair, "=")
			}
			if !ok {
				continue
			}
			k = strings.ToLower(strings.TrimSpace(k))
			v = strings.TrimSpace(v)
			if k != "" {
				hints[k] = v
			}
		}
	}
	return hints
}
