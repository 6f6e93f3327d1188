package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/minirel/minirel/internal/errors"
	"github.com/minirel/minirel/pkg/types"
)

// ParseError represents a parsing error with location information.
// Code is one of the statement or schema error codes in internal/errors.
type ParseError struct {
	Code     string
	Message  string
	Position int
	Token    Token
}

func (e *ParseError) Error() string {
	got := e.Token.Literal
	switch e.Token.Type {
	case TokenEOF:
		got = "end of input"
	case TokenString:
		got = types.QuoteText(got)
	}
	return fmt.Sprintf("parse error at position %d: %s (got %s)", e.Position, e.Message, got)
}

// Unwrap exposes the structured error so errors.Is and errors.GetCode
// work on parse failures.
func (e *ParseError) Unwrap() error {
	category := errors.ErrCategoryStatement
	if e.Code == errors.CodeInvalidColumnDef {
		category = errors.ErrCategorySchema
	}
	return errors.New(category, e.Code, e.Error())
}

// Parser parses statements into AST nodes.
type Parser struct {
	lexer     *Lexer
	curToken  Token
	peekToken Token
}

// NewParser creates a new Parser for the given input.
func NewParser(input string) *Parser {
	p := &Parser{
		lexer: NewLexer(input),
	}
	// Read two tokens to initialize curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses a single statement. A trailing semicolon is optional.
func Parse(input string) (Statement, error) {
	p := NewParser(input)
	return p.ParseStatement()
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
}

func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) peekTokenIs(t TokenType) bool {
	return p.peekToken.Type == t
}

// errorf builds a ParseError positioned at the current token.
func (p *Parser) errorf(code, format string, args ...interface{}) *ParseError {
	return &ParseError{
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Position: p.curToken.Pos,
		Token:    p.curToken,
	}
}

// expect consumes the current token if it has type t.
func (p *Parser) expect(t TokenType, code string) error {
	if !p.curTokenIs(t) {
		return p.errorf(code, "expected %s", t.String())
	}
	p.nextToken()
	return nil
}

// atEnd reports whether only an optional semicolon remains.
func (p *Parser) atEnd() bool {
	return p.curTokenIs(TokenEOF) || (p.curTokenIs(TokenSemicolon) && p.peekTokenIs(TokenEOF))
}

// ParseStatement parses one statement and requires the input to end after it.
func (p *Parser) ParseStatement() (Statement, error) {
	var (
		stmt Statement
		err  error
	)

	switch p.curToken.Type {
	case TokenCreate:
		stmt, err = p.parseCreateTable()
	case TokenInsert:
		stmt, err = p.parseInsert()
	case TokenSelect:
		stmt, err = p.parseSelect()
	case TokenUpdate:
		stmt, err = p.parseUpdate()
	case TokenDelete:
		stmt, err = p.parseDelete()
	default:
		return nil, p.errorf(errors.CodeSyntaxError,
			"unrecognized statement; expected CREATE TABLE, INSERT, SELECT, UPDATE or DELETE")
	}
	if err != nil {
		return nil, err
	}

	if !p.atEnd() {
		return nil, p.errorf(errors.CodeSyntaxError, "unexpected input after statement")
	}
	return stmt, nil
}

// parseName reads an identifier naming a table or column. Keywords are
// accepted in name positions and keep the spelling used in the input.
func (p *Parser) parseName(what, code string) (string, error) {
	var name string
	switch {
	case p.curTokenIs(TokenIdent):
		name = p.curToken.Literal
	case p.curToken.Type.IsKeyword():
		name = p.lexer.input[p.curToken.Pos : p.curToken.Pos+len(p.curToken.Literal)]
	default:
		return "", p.errorf(code, "expected %s name", what)
	}
	p.nextToken()
	return name, nil
}

// parseCreateTable parses CREATE TABLE name (col type [PRIMARY KEY] [UNIQUE], ...).
func (p *Parser) parseCreateTable() (*CreateTableStatement, error) {
	p.nextToken() // Skip CREATE

	if err := p.expect(TokenTable, errors.CodeSyntaxError); err != nil {
		return nil, err
	}
	name, err := p.parseName("table", errors.CodeSyntaxError)
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokenLParen, errors.CodeSyntaxError); err != nil {
		return nil, err
	}
	if p.curTokenIs(TokenRParen) {
		return nil, p.errorf(errors.CodeInvalidColumnDef, "table '%s' must declare at least one column", name)
	}

	stmt := &CreateTableStatement{Name: name}
	for {
		col, err := p.parseColumnDef()
		if err != nil {
			return nil, err
		}
		stmt.Columns = append(stmt.Columns, col)

		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken() // Skip comma
	}

	if err := p.expect(TokenRParen, errors.CodeInvalidColumnDef); err != nil {
		return nil, err
	}
	return stmt, nil
}

// parseColumnDef parses "name TYPE [PRIMARY KEY] [UNIQUE]". PRIMARY KEY
// implies UNIQUE; both markers may appear in any order.
func (p *Parser) parseColumnDef() (types.ColumnDef, error) {
	var col types.ColumnDef

	name, err := p.parseName("column", errors.CodeInvalidColumnDef)
	if err != nil {
		return col, err
	}
	col.Name = name

	if !p.curTokenIs(TokenIdent) {
		return col, p.errorf(errors.CodeInvalidColumnDef, "missing type for column '%s'", name)
	}
	col.Type = types.ColumnType(strings.ToUpper(p.curToken.Literal))
	p.nextToken()

	for {
		switch {
		case p.curTokenIs(TokenPrimary):
			p.nextToken()
			if err := p.expect(TokenKey, errors.CodeInvalidColumnDef); err != nil {
				return col, err
			}
			col.PrimaryKey = true
			col.Unique = true
		case p.curTokenIs(TokenUnique):
			p.nextToken()
			col.Unique = true
		case p.curTokenIs(TokenComma), p.curTokenIs(TokenRParen):
			return col, nil
		default:
			return col, p.errorf(errors.CodeInvalidColumnDef,
				"unexpected token in definition of column '%s'", name)
		}
	}
}

// parseLiteral reads one literal: a quoted string, or the unquoted run of
// characters up to the next separator. An unquoted run is NULL, an integer,
// or text passed through for later type coercion.
func (p *Parser) parseLiteral(code string) (interface{}, error) {
	if p.curTokenIs(TokenString) {
		v := p.curToken.Literal
		p.nextToken()
		return v, nil
	}

	start := p.curToken.Pos
	if p.curTokenIs(TokenError) && p.lexer.input[start] == '\'' {
		return nil, p.errorf(code, "unterminated string literal")
	}
	end := start
	if start < len(p.lexer.input) {
		end = p.lexer.rawWord(start)
	}
	if end == start {
		return nil, p.errorf(code, "expected literal value")
	}
	raw := p.lexer.input[start:end]

	p.lexer.seek(end)
	p.nextToken()
	p.nextToken()

	if strings.EqualFold(raw, "NULL") {
		return nil, nil
	}
	return numberLiteral(raw), nil
}

// numberLiteral parses lit as int64, falling back to the raw text.
func numberLiteral(lit string) interface{} {
	if n, err := strconv.ParseInt(lit, 10, 64); err == nil {
		return n
	}
	return lit
}

// parseInsert parses INSERT INTO name (cols) VALUES (vals).
func (p *Parser) parseInsert() (*InsertStatement, error) {
	p.nextToken() // Skip INSERT

	if err := p.expect(TokenInto, errors.CodeSyntaxError); err != nil {
		return nil, err
	}
	table, err := p.parseName("table", errors.CodeSyntaxError)
	if err != nil {
		return nil, err
	}
	stmt := &InsertStatement{Table: table, Columns: []string{}, Values: []interface{}{}}

	if err := p.expect(TokenLParen, errors.CodeSyntaxError); err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	for !p.curTokenIs(TokenRParen) {
		col, err := p.parseName("column", errors.CodeSyntaxError)
		if err != nil {
			return nil, err
		}
		if seen[col] {
			return nil, p.errorf(errors.CodeSyntaxError, "column '%s' listed more than once", col)
		}
		seen[col] = true
		stmt.Columns = append(stmt.Columns, col)
		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
	}
	if err := p.expect(TokenRParen, errors.CodeSyntaxError); err != nil {
		return nil, err
	}

	if err := p.expect(TokenValues, errors.CodeSyntaxError); err != nil {
		return nil, err
	}
	if err := p.expect(TokenLParen, errors.CodeSyntaxError); err != nil {
		return nil, err
	}
	for !p.curTokenIs(TokenRParen) {
		v, err := p.parseLiteral(errors.CodeSyntaxError)
		if err != nil {
			return nil, err
		}
		stmt.Values = append(stmt.Values, v)
		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
	}
	if err := p.expect(TokenRParen, errors.CodeSyntaxError); err != nil {
		return nil, err
	}

	if len(stmt.Columns) != len(stmt.Values) {
		return nil, &ParseError{
			Code:     errors.CodeArgumentCountMismatch,
			Message:  fmt.Sprintf("INSERT lists %d columns but %d values", len(stmt.Columns), len(stmt.Values)),
			Position: p.curToken.Pos,
			Token:    p.curToken,
		}
	}
	return stmt, nil
}

// parseSelect parses a single-table SELECT or, when INNER JOIN follows
// the FROM table, a join.
func (p *Parser) parseSelect() (Statement, error) {
	p.nextToken() // Skip SELECT

	star := false
	var items []types.QualifiedColumn
	if p.curTokenIs(TokenStar) {
		star = true
		p.nextToken()
	} else {
		for {
			item, err := p.parseProjectionItem()
			if err != nil {
				return nil, err
			}
			items = append(items, item)
			if !p.curTokenIs(TokenComma) {
				break
			}
			p.nextToken()
		}
	}

	if err := p.expect(TokenFrom, errors.CodeSyntaxError); err != nil {
		return nil, err
	}
	table, err := p.parseName("table", errors.CodeSyntaxError)
	if err != nil {
		return nil, err
	}

	if p.curTokenIs(TokenInner) {
		return p.parseJoin(table, star, items)
	}

	stmt := &SelectStatement{Table: table}
	if !star {
		stmt.Columns = make([]string, len(items))
		for i, item := range items {
			if item.Table != "" {
				return nil, &ParseError{
					Code:     errors.CodeInvalidProjection,
					Message:  fmt.Sprintf("qualified column '%s' is only allowed in joins", item.String()),
					Position: p.curToken.Pos,
					Token:    p.curToken,
				}
			}
			stmt.Columns[i] = item.Column
		}
	}

	if p.curTokenIs(TokenWhere) {
		where, err := p.parseWhere()
		if err != nil {
			return nil, err
		}
		stmt.Where = where
	}
	return stmt, nil
}

// parseProjectionItem parses "col" or "table.col". Bare items carry an
// empty Table.
func (p *Parser) parseProjectionItem() (types.QualifiedColumn, error) {
	name, err := p.parseName("column", errors.CodeSyntaxError)
	if err != nil {
		return types.QualifiedColumn{}, err
	}
	if !p.curTokenIs(TokenDot) {
		return types.QualifiedColumn{Column: name}, nil
	}
	p.nextToken() // Skip dot
	col, err := p.parseName("column", errors.CodeSyntaxError)
	if err != nil {
		return types.QualifiedColumn{}, err
	}
	return types.QualifiedColumn{Table: name, Column: col}, nil
}

// parseJoin parses "INNER JOIN right ON left.x = right.y" after the FROM table.
func (p *Parser) parseJoin(left string, star bool, items []types.QualifiedColumn) (*JoinStatement, error) {
	p.nextToken() // Skip INNER

	if err := p.expect(TokenJoin, errors.CodeSyntaxError); err != nil {
		return nil, err
	}
	right, err := p.parseName("table", errors.CodeSyntaxError)
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokenOn, errors.CodeSyntaxError); err != nil {
		return nil, err
	}

	onPos := p.curToken
	lref, err := p.parseQualifiedRef()
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokenEq, errors.CodeSyntaxError); err != nil {
		return nil, err
	}
	rref, err := p.parseQualifiedRef()
	if err != nil {
		return nil, err
	}

	if lref.Table != left || rref.Table != right {
		return nil, &ParseError{
			Code:     errors.CodeJoinTableMismatch,
			Message:  fmt.Sprintf("ON clause must compare %s.<col> = %s.<col>", left, right),
			Position: onPos.Pos,
			Token:    onPos,
		}
	}

	if star {
		return nil, &ParseError{
			Code:     errors.CodeInvalidProjection,
			Message:  "joins require an explicit table.column projection",
			Position: onPos.Pos,
			Token:    onPos,
		}
	}
	for _, item := range items {
		if item.Table == "" {
			return nil, &ParseError{
				Code:     errors.CodeInvalidProjection,
				Message:  fmt.Sprintf("join projection column '%s' must be qualified as table.column", item.Column),
				Position: onPos.Pos,
				Token:    onPos,
			}
		}
	}

	return &JoinStatement{
		Columns:     items,
		Left:        left,
		Right:       right,
		LeftColumn:  lref.Column,
		RightColumn: rref.Column,
	}, nil
}

func (p *Parser) parseQualifiedRef() (types.QualifiedColumn, error) {
	table, err := p.parseName("table", errors.CodeSyntaxError)
	if err != nil {
		return types.QualifiedColumn{}, err
	}
	if err := p.expect(TokenDot, errors.CodeSyntaxError); err != nil {
		return types.QualifiedColumn{}, err
	}
	col, err := p.parseName("column", errors.CodeSyntaxError)
	if err != nil {
		return types.QualifiedColumn{}, err
	}
	return types.QualifiedColumn{Table: table, Column: col}, nil
}

// parseUpdate parses UPDATE table SET c = v, ... [WHERE col = value].
func (p *Parser) parseUpdate() (*UpdateStatement, error) {
	p.nextToken() // Skip UPDATE

	table, err := p.parseName("table", errors.CodeSyntaxError)
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokenSet, errors.CodeSyntaxError); err != nil {
		return nil, err
	}

	stmt := &UpdateStatement{Table: table}
	seen := make(map[string]bool)
	for {
		col, err := p.parseName("column", errors.CodeSyntaxError)
		if err != nil {
			return nil, err
		}
		if seen[col] {
			return nil, p.errorf(errors.CodeSyntaxError, "column '%s' assigned more than once", col)
		}
		seen[col] = true
		if err := p.expect(TokenEq, errors.CodeSyntaxError); err != nil {
			return nil, err
		}
		v, err := p.parseLiteral(errors.CodeSyntaxError)
		if err != nil {
			return nil, err
		}
		stmt.Assignments = append(stmt.Assignments, Assignment{Column: col, Value: v})

		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
	}

	if p.curTokenIs(TokenWhere) {
		where, err := p.parseWhere()
		if err != nil {
			return nil, err
		}
		stmt.Where = where
	}
	return stmt, nil
}

// parseDelete parses DELETE FROM table [WHERE col = value].
func (p *Parser) parseDelete() (*DeleteStatement, error) {
	p.nextToken() // Skip DELETE

	if err := p.expect(TokenFrom, errors.CodeSyntaxError); err != nil {
		return nil, err
	}
	table, err := p.parseName("table", errors.CodeSyntaxError)
	if err != nil {
		return nil, err
	}

	stmt := &DeleteStatement{Table: table}
	if p.curTokenIs(TokenWhere) {
		where, err := p.parseWhere()
		if err != nil {
			return nil, err
		}
		stmt.Where = where
	}
	return stmt, nil
}

// parseWhere parses "WHERE col = literal" and requires the statement to
// end after the literal.
func (p *Parser) parseWhere() (*types.Predicate, error) {
	p.nextToken() // Skip WHERE

	col, err := p.parseName("column", errors.CodeInvalidPredicate)
	if err != nil {
		return nil, err
	}
	if !p.curTokenIs(TokenEq) {
		return nil, p.errorf(errors.CodeInvalidPredicate, "only 'column = value' predicates are supported")
	}
	p.nextToken()

	value, err := p.parseLiteral(errors.CodeInvalidPredicate)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, p.errorf(errors.CodeInvalidPredicate, "comparison with NULL is not supported")
	}
	if !p.atEnd() {
		return nil, p.errorf(errors.CodeInvalidPredicate, "only a single 'column = value' predicate is supported")
	}
	return types.Eq(col, value), nil
}
