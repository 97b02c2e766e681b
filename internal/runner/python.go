package runner

import (
	"github.com/majorcontext/drawbridge/internal/config"
	"github.com/majorcontext/drawbridge/internal/credential"
)

// DefaultPython is the interpreter used when none is configured.
const DefaultPython = "python3"

// PythonEnv returns the variables background Python tasks run with.
func PythonEnv(rt config.RuntimeConfig) credential.Env {
	env := credential.Env{
		"PYTHONUNBUFFERED":        "1",
		"PYTHONIOENCODING":        "utf-8",
		"PYTHONDONTWRITEBYTECODE": "1",
		"PYTHONUTF8":              "1",
	}
	if rt.PythonPath != "" {
		env["PYTHONPATH"] = rt.PythonPath
	}
	return env
}

// PythonExecutable returns the configured interpreter or DefaultPython.
func PythonExecutable(rt config.RuntimeConfig) string {
	if rt.PythonExecutable != "" {
		return rt.PythonExecutable
	}
	return DefaultPython
}
