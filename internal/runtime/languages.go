package runtime

// Python returns the interpreted runtime for Python 3.
func Python() Runtime {
	return interpreted{
		language: "python",
		fileName: "main.py",
		comment:  "#",
		image:    "python:3.11-alpine",
		run:      Command{Name: "python3", Args: []string{"main.py"}},
	}
}

// JavaScript returns the interpreted runtime for Node.js.
func JavaScript() Runtime {
	return interpreted{
		language: "javascript",
		fileName: "main.js",
		comment:  "//",
		image:    "node:20-alpine",
		run:      Command{Name: "node", Args: []string{"main.js"}},
	}
}

// Cpp returns the compiled runtime for C++17.
func Cpp() Runtime {
	return compiled{
		interpreted: interpreted{
			language: "cpp",
			fileName: "main.cpp",
			comment:  "//",
			image:    "gcc:13",
			run:      Command{Name: "./main"},
		},
		compile: Command{Name: "g++", Args: []string{"-O2", "-std=c++17", "-o", "main", "main.cpp"}},
	}
}

// Java returns the compiled runtime for the JVM. The source file must hold a
// public class named Main.
func Java() Runtime {
	return compiled{
		interpreted: interpreted{
			language: "java",
			fileName: "Main.java",
			comment:  "//",
			image:    "eclipse-temurin:21-jdk-alpine",
			run:      Command{Name: "java", Args: []string{"Main"}},
		},
		compile: Command{Name: "javac", Args: []string{"Main.java"}},
	}
}
