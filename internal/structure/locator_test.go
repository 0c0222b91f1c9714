package structure

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const goSource = `package main

import "fmt"

func Greet(name string) string {
	return fmt.Sprintf("Hello, %s!", name)
}

type Server struct {
	Host string
	Port int
}

func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
`

func TestLanguageForFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"main.go", "go", true},
		{"app.tsx", "typescript", true},
		{"app.mjs", "javascript", true},
		{"script.py", "python", true},
		{"lib.rs", "rust", true},
		{"util.hpp", "cpp", true},
		{"App.java", "java", true},
		{"index.php", "php", true},
		{"app.rb", "ruby", true},
		{"path/to/file.GO", "go", true},
		{"README.md", "", false},
		{"Makefile", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			got, ok := LanguageForFile(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGrammarFor(t *testing.T) {
	t.Parallel()
	for _, lang := range []string{"go", "typescript", "javascript", "python", "rust", "c", "cpp", "java", "php", "ruby"} {
		l, ok := GrammarFor(lang)
		assert.True(t, ok, lang)
		assert.NotNil(t, l, lang)
	}
	_, ok := GrammarFor("cobol")
	assert.False(t, ok)
}

func TestEnclosingSymbol_Go(t *testing.T) {
	t.Parallel()
	l := NewLocator()
	src := []byte(goSource)

	tests := []struct {
		line int
		want string
	}{
		{1, ""},
		{4, ""},
		{6, "Greet"},
		{10, "Server"},
		{15, "Server.Address"},
		{0, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, l.EnclosingSymbol("main.go", src, tt.line), "line %d", tt.line)
	}
}

func TestEnclosingSymbol_Languages(t *testing.T) {
	t.Parallel()
	l := NewLocator()

	tests := []struct {
		name string
		path string
		src  string
		line int
		want string
	}{
		{
			name: "python method",
			path: "greeter.py",
			src:  "class Greeter:\n    def greet(self):\n        return 'hi'\n\ndef top():\n    pass\n",
			line: 3,
			want: "Greeter.greet",
		},
		{
			name: "python function",
			path: "greeter.py",
			src:  "class Greeter:\n    def greet(self):\n        return 'hi'\n\ndef top():\n    pass\n",
			line: 6,
			want: "top",
		},
		{
			name: "rust impl",
			path: "point.rs",
			src:  "struct Point { x: f64 }\n\nimpl Point {\n    fn norm(&self) -> f64 {\n        self.x\n    }\n}\n",
			line: 5,
			want: "Point.norm",
		},
		{
			name: "c function",
			path: "add.c",
			src:  "int add(int a, int b) {\n    return a + b;\n}\n",
			line: 2,
			want: "add",
		},
		{
			name: "java method",
			path: "Foo.java",
			src:  "class Foo {\n  void bar() {\n    int x = 1;\n  }\n}\n",
			line: 3,
			want: "Foo.bar",
		},
		{
			name: "unknown extension",
			path: "notes.txt",
			src:  "hello\n",
			line: 1,
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, l.EnclosingSymbol(tt.path, []byte(tt.src), tt.line))
		})
	}
}
