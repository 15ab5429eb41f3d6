package raygun

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStackFrame(t *testing.T) {
	tests := []struct {
		name       string
		line       string
		raw        string
		className  string
		methodName string
		fileName   string
		lineNumber int
	}{
		{
			name:       "full frame",
			line:       `   at MyApp.Pages.MainPage.Button_Click(Object sender, RoutedEventArgs e) in C:\src\MainPage.xaml.cs:line 42`,
			raw:        `MyApp.Pages.MainPage.Button_Click(Object sender, RoutedEventArgs e) in C:\src\MainPage.xaml.cs:line 42`,
			className:  "MyApp.Pages.MainPage",
			methodName: "Button_Click(Object sender, RoutedEventArgs e)",
			fileName:   `C:\src\MainPage.xaml.cs`,
			lineNumber: 42,
		},
		{
			name:       "no file",
			line:       "at A.B()",
			raw:        "A.B()",
			className:  "A",
			methodName: "B()",
		},
		{
			name:       "generic method with square brackets",
			line:       "at System.Collections.Generic.List`1.ForEach[T](Action`1 action)",
			raw:        "System.Collections.Generic.List`1.ForEach[T](Action`1 action)",
			className:  "System.Collections.Generic.List`1",
			methodName: "ForEach[T](Action`1 action)",
		},
		{
			name:       "generic class and method with angle brackets",
			line:       "at MyApp.Repo<System.String>.Get<T>()",
			raw:        "MyApp.Repo<System.String>.Get<T>()",
			className:  "MyApp.Repo<System.String>",
			methodName: "Get<T>()",
		},
		{
			name:       "compiler generated lambda",
			line:       "at Foo.Bar.<Run>b__0(Int32 x) in /src/bar.cs:line 7",
			raw:        "Foo.Bar.<Run>b__0(Int32 x) in /src/bar.cs:line 7",
			className:  "Foo.Bar",
			methodName: "<Run>b__0(Int32 x)",
			fileName:   "/src/bar.cs",
			lineNumber: 7,
		},
		{
			name:       "file without line number",
			line:       "at Foo.Bar() in /src/bar.cs",
			raw:        "Foo.Bar() in /src/bar.cs",
			className:  "Foo",
			methodName: "Bar()",
			fileName:   "/src/bar.cs",
		},
		{
			name:       "path containing the file separator",
			line:       `at App.Main.Run() in C:\Work in progress\Main.cs:line 10`,
			raw:        `App.Main.Run() in C:\Work in progress\Main.cs:line 10`,
			className:  "App.Main",
			methodName: "Run()",
			fileName:   `C:\Work in progress\Main.cs`,
			lineNumber: 10,
		},
		{
			name:       "path with parentheses",
			line:       `at App.Main.Run(String s) in C:\Program Files (x86)\App\Main.cs:line 3`,
			raw:        `App.Main.Run(String s) in C:\Program Files (x86)\App\Main.cs:line 3`,
			className:  "App.Main",
			methodName: "Run(String s)",
			fileName:   `C:\Program Files (x86)\App\Main.cs`,
			lineNumber: 3,
		},
		{
			name: "separator line keeps raw only",
			line: "--- End of stack trace from previous location ---",
			raw:  "--- End of stack trace from previous location ---",
		},
		{
			name: "unbalanced generics keep raw only",
			line: "at A.B<(x)",
			raw:  "A.B<(x)",
		},
		{
			name: "no class keeps raw only",
			line: "at Main()",
			raw:  "Main()",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := ParseStackFrame(tt.line)

			assert.Equal(t, tt.raw, frame.Raw)
			assert.Equal(t, tt.className, frame.ClassName)
			assert.Equal(t, tt.methodName, frame.MethodName)
			assert.Equal(t, tt.fileName, frame.FileName)
			if tt.lineNumber == 0 {
				assert.Nil(t, frame.LineNumber)
			} else {
				require.NotNil(t, frame.LineNumber)
				assert.Equal(t, tt.lineNumber, *frame.LineNumber)
			}
			assert.Nil(t, frame.IP)
			assert.Nil(t, frame.ImageBase)
		})
	}
}

func TestParseStackTrace(t *testing.T) {
	assert.Nil(t, ParseStackTrace(""))
	assert.Nil(t, ParseStackTrace("  \r\n "))

	frames := ParseStackTrace("   at A.B() in a.cs:line 1\r\n\r\n   at C.D(Int32 x)\n")
	require.Len(t, frames, 2)
	assert.Equal(t, "A", frames[0].ClassName)
	assert.Equal(t, "C", frames[1].ClassName)
	assert.Equal(t, "D(Int32 x)", frames[1].MethodName)
}

func TestParseStackFrame_NeverPanics(t *testing.T) {
	inputs := []string{
		"", "at ", "(", ")", ".(", "at .()", " in ", "a( in :line ", ":line x", "<<<>>>.(",
		"at A.B() in :line 99999999999999999999",
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() { ParseStackFrame(in) }, "input %q", in)
	}
}
