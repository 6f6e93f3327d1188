// Package parser provides parsing of the minirel statement language.
package parser

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// TokenType represents the type of a lexical token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError
	TokenIdent
	TokenNumber
	TokenString

	// Keywords
	TokenCreate
	TokenTable
	TokenInsert
	TokenInto
	TokenValues
	TokenSelect
	TokenFrom
	TokenWhere
	TokenUpdate
	TokenSet
	TokenDelete
	TokenInner
	TokenJoin
	TokenOn
	TokenPrimary
	TokenKey
	TokenUnique
	TokenNull

	// Operators
	TokenEq        // =
	TokenNe        // <> or !=
	TokenLt        // <
	TokenGt        // >
	TokenLe        // <=
	TokenGe        // >=
	TokenMinus     // -
	TokenStar      // *
	TokenComma     // ,
	TokenLParen    // (
	TokenRParen    // )
	TokenDot       // .
	TokenSemicolon // ;
)

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string
	Pos     int // Position in input
}

// String returns a string representation of the token.
func (t Token) String() string {
	return fmt.Sprintf("Token{%s, %q, %d}", t.Type.String(), t.Literal, t.Pos)
}

var tokenNames = map[TokenType]string{
	TokenEOF:       "EOF",
	TokenError:     "ERROR",
	TokenIdent:     "IDENT",
	TokenNumber:    "NUMBER",
	TokenString:    "STRING",
	TokenCreate:    "CREATE",
	TokenTable:     "TABLE",
	TokenInsert:    "INSERT",
	TokenInto:      "INTO",
	TokenValues:    "VALUES",
	TokenSelect:    "SELECT",
	TokenFrom:      "FROM",
	TokenWhere:     "WHERE",
	TokenUpdate:    "UPDATE",
	TokenSet:       "SET",
	TokenDelete:    "DELETE",
	TokenInner:     "INNER",
	TokenJoin:      "JOIN",
	TokenOn:        "ON",
	TokenPrimary:   "PRIMARY",
	TokenKey:       "KEY",
	TokenUnique:    "UNIQUE",
	TokenNull:      "NULL",
	TokenEq:        "=",
	TokenNe:        "<>",
	TokenLt:        "<",
	TokenGt:        ">",
	TokenLe:        "<=",
	TokenGe:        ">=",
	TokenMinus:     "-",
	TokenStar:      "*",
	TokenComma:     ",",
	TokenLParen:    "(",
	TokenRParen:    ")",
	TokenDot:       ".",
	TokenSemicolon: ";",
}

// String returns the string representation of a TokenType.
func (t TokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return "UNKNOWN"
}

// IsKeyword reports whether t is a keyword token.
func (t TokenType) IsKeyword() bool {
	return t >= TokenCreate && t <= TokenNull
}

// keywords maps statement keywords to their token types.
var keywords = map[string]TokenType{
	"CREATE":  TokenCreate,
	"TABLE":   TokenTable,
	"INSERT":  TokenInsert,
	"INTO":    TokenInto,
	"VALUES":  TokenValues,
	"SELECT":  TokenSelect,
	"FROM":    TokenFrom,
	"WHERE":   TokenWhere,
	"UPDATE":  TokenUpdate,
	"SET":     TokenSet,
	"DELETE":  TokenDelete,
	"INNER":   TokenInner,
	"JOIN":    TokenJoin,
	"ON":      TokenOn,
	"PRIMARY": TokenPrimary,
	"KEY":     TokenKey,
	"UNIQUE":  TokenUnique,
	"NULL":    TokenNull,
}

// Lexer tokenizes statement input.
type Lexer struct {
	input   string
	pos     int  // Current position in input
	readPos int  // Reading position (after current char)
	ch      byte // Current character
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

// readChar reads the next character and advances the position.
func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

// peekChar returns the next character without advancing.
func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

// NextToken returns the next token from the input.
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	startPos := l.pos
	var tok Token

	switch l.ch {
	case '=':
		tok = Token{Type: TokenEq, Literal: "=", Pos: startPos}
	case '<':
		if l.peekChar() == '=' {
			l.readChar()
			tok = Token{Type: TokenLe, Literal: "<=", Pos: startPos}
		} else if l.peekChar() == '>' {
			l.readChar()
			tok = Token{Type: TokenNe, Literal: "<>", Pos: startPos}
		} else {
			tok = Token{Type: TokenLt, Literal: "<", Pos: startPos}
		}
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			tok = Token{Type: TokenGe, Literal: ">=", Pos: startPos}
		} else {
			tok = Token{Type: TokenGt, Literal: ">", Pos: startPos}
		}
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			tok = Token{Type: TokenNe, Literal: "!=", Pos: startPos}
		} else {
			tok = Token{Type: TokenError, Literal: string(l.ch), Pos: startPos}
		}
	case '-':
		tok = Token{Type: TokenMinus, Literal: "-", Pos: startPos}
	case '*':
		tok = Token{Type: TokenStar, Literal: "*", Pos: startPos}
	case ',':
		tok = Token{Type: TokenComma, Literal: ",", Pos: startPos}
	case '(':
		tok = Token{Type: TokenLParen, Literal: "(", Pos: startPos}
	case ')':
		tok = Token{Type: TokenRParen, Literal: ")", Pos: startPos}
	case '.':
		tok = Token{Type: TokenDot, Literal: ".", Pos: startPos}
	case ';':
		tok = Token{Type: TokenSemicolon, Literal: ";", Pos: startPos}
	case '\'':
		tok = l.readString()
	case 0:
		tok = Token{Type: TokenEOF, Literal: "", Pos: startPos}
	default:
		if isLetter(l.ch) || l.ch == '_' {
			return l.readIdentifier()
		} else if isDigit(l.ch) {
			return l.readNumber()
		} else {
			r, size := utf8.DecodeRuneInString(l.input[l.pos:])
			l.readPos = l.pos + size
			tok = Token{Type: TokenError, Literal: string(r), Pos: startPos}
		}
	}

	l.readChar()
	return tok
}

// readIdentifier reads an identifier or keyword. Keyword literals are
// upper-cased; identifiers keep their original spelling.
func (l *Lexer) readIdentifier() Token {
	startPos := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	literal := l.input[startPos:l.pos]
	upper := strings.ToUpper(literal)

	if tokType, ok := keywords[upper]; ok {
		return Token{Type: tokType, Literal: upper, Pos: startPos}
	}

	return Token{Type: TokenIdent, Literal: literal, Pos: startPos}
}

// readNumber reads a numeric literal, including a single decimal point.
func (l *Lexer) readNumber() Token {
	startPos := l.pos
	hasDecimal := false

	for isDigit(l.ch) || (l.ch == '.' && !hasDecimal && isDigit(l.peekChar())) {
		if l.ch == '.' {
			hasDecimal = true
		}
		l.readChar()
	}

	return Token{Type: TokenNumber, Literal: l.input[startPos:l.pos], Pos: startPos}
}

// readString reads a single-quoted string literal. A doubled quote inside
// the literal is an escaped quote. The literal excludes the delimiters and
// is returned with escapes resolved.
func (l *Lexer) readString() Token {
	startPos := l.pos
	l.readChar() // Skip opening quote

	var sb strings.Builder
	for {
		if l.ch == 0 {
			return Token{Type: TokenError, Literal: "unterminated string", Pos: startPos}
		}
		if l.ch == '\'' {
			if l.peekChar() != '\'' {
				break
			}
			l.readChar()
		}
		sb.WriteByte(l.ch)
		l.readChar()
	}

	// The closing quote is consumed by NextToken.
	return Token{Type: TokenString, Literal: sb.String(), Pos: startPos}
}

// seek repositions the lexer so the next token starts at pos.
func (l *Lexer) seek(pos int) {
	l.readPos = pos
	l.readChar()
}

// rawWord returns the end of the unquoted run starting at start. The run
// stops at whitespace, ',', '(', ')', ';' or end of input.
func (l *Lexer) rawWord(start int) int {
	end := start
	for end < len(l.input) {
		switch l.input[end] {
		case ' ', '\t', '\n', '\r', ',', '(', ')', ';':
			return end
		}
		end++
	}
	return end
}

// Tokenize returns all tokens from the input.
func (l *Lexer) Tokenize() []Token {
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF || tok.Type == TokenError {
			break
		}
	}
	return tokens
}

func isLetter(ch byte) bool {
	return ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z')
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
