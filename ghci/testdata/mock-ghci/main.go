//go:build ignore

// mock-ghci imitates the small part of ghci's stdin/stdout behavior that
// sessions depend on: a banner, a configurable prompt, :{ :} blocks and a
// handful of IO actions. Set MOCK_GHCI_MODE to change startup behavior:
//
//	startup-stderr  write a warning to stderr before the first prompt
//	no-prompt       print the banner and exit
//	long-banner     print a banner longer than the negotiation buffer
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

func main() {
	prompt := "ghci> "
	contPrompt := "ghci| "

	switch os.Getenv("MOCK_GHCI_MODE") {
	case "startup-stderr":
		fmt.Fprintln(os.Stderr, "Warning: ignoring unusable .ghci file")
	case "no-prompt":
		fmt.Println("GHCi, version 9.6.0: https://www.haskell.org/ghc/  :? for help")
		os.Exit(0)
	case "long-banner":
		for i := 0; i < 200; i++ {
			fmt.Printf("Loaded package environment line %d\n", i)
		}
	}
	fmt.Println("GHCi, version 9.6.0: https://www.haskell.org/ghc/  :? for help")
	fmt.Print(prompt)

	in := bufio.NewReader(os.Stdin)
	var block []string
	inBlock := false
	for {
		line, err := in.ReadString('\n')
		if err != nil {
			os.Exit(0)
		}
		line = strings.TrimRight(line, "\n")

		switch {
		case inBlock && line == ":}":
			inBlock = false
			run(block)
			block = nil
			fmt.Print(prompt)
		case inBlock:
			block = append(block, line)
			fmt.Print(contPrompt)
		case line == ":{":
			inBlock = true
			fmt.Print(contPrompt)
		case strings.HasPrefix(line, ":set prompt-cont "):
			contPrompt = haskellString(strings.TrimPrefix(line, ":set prompt-cont "))
			fmt.Print(prompt)
		case strings.HasPrefix(line, ":set prompt "):
			prompt = haskellString(strings.TrimPrefix(line, ":set prompt "))
			fmt.Print(prompt)
		default:
			run([]string{line})
			fmt.Print(prompt)
		}
	}
}

func haskellString(s string) string {
	v, err := strconv.Unquote(strings.TrimSpace(s))
	if err != nil {
		fmt.Fprintf(os.Stderr, "<interactive>:1:1: error: lexical error in string\n")
		return s
	}
	return v
}

func run(lines []string) {
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		switch {
		case line == "" || line == "do":
		case strings.HasPrefix(line, "import "), strings.HasPrefix(line, ":module"):
		case line == ":quit":
			fmt.Println("Leaving GHCi.")
			os.Exit(0)
		case strings.HasPrefix(line, ":load "):
			load(strings.Fields(strings.TrimPrefix(line, ":load ")))
		case strings.HasPrefix(line, "putStrLn "):
			fmt.Println(haskellString(strings.TrimPrefix(line, "putStrLn ")))
		case strings.HasPrefix(line, "putStr "):
			fmt.Print(haskellString(strings.TrimPrefix(line, "putStr ")))
		case strings.HasPrefix(line, "hPutStrLn stdout "):
			fmt.Println(haskellString(strings.TrimPrefix(line, "hPutStrLn stdout ")))
		case line == "hClose stderr":
			_ = os.Stderr.Close()
		case strings.HasPrefix(line, "hPutStrLn stderr "):
			fmt.Fprintln(os.Stderr, haskellString(strings.TrimPrefix(line, "hPutStrLn stderr ")))
		case strings.HasPrefix(line, "threadDelay "):
			us, err := strconv.Atoi(strings.TrimPrefix(line, "threadDelay "))
			if err != nil {
				notInScope(line)
				return
			}
			time.Sleep(time.Duration(us) * time.Microsecond)
		case strings.HasPrefix(line, "mapM_ print [1.."):
			n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(line, "mapM_ print [1.."), "]"))
			if err != nil {
				notInScope(line)
				return
			}
			w := bufio.NewWriter(os.Stdout)
			for i := 1; i <= n; i++ {
				fmt.Fprintln(w, i)
			}
			_ = w.Flush()
		case strings.HasSuffix(line, "::"):
			fmt.Fprintf(os.Stderr, "<interactive>:%d:%d: error: [GHC-58481]\n    parse error (possibly incorrect indentation or mismatched brackets)\n", 1, len(line)+1)
			return
		default:
			if v, ok := arith(line); ok {
				fmt.Println(v)
				continue
			}
			notInScope(line)
			return
		}
	}
}

func arith(expr string) (int, bool) {
	sum := 0
	for _, term := range strings.Split(expr, "+") {
		n, err := strconv.Atoi(strings.TrimSpace(term))
		if err != nil {
			return 0, false
		}
		sum += n
	}
	return sum, true
}

func notInScope(line string) {
	name := strings.Fields(line)[0]
	fmt.Fprintf(os.Stderr, "<interactive>:1:1: error: [GHC-88464]\n    Variable not in scope: %s\n", name)
}

func load(paths []string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			fmt.Fprintf(os.Stderr, "<no location info>: error: can't find a source file %q\n", p)
			fmt.Println("Failed, no modules loaded.")
			return
		}
	}
	fmt.Printf("Ok, %d modules loaded.\n", len(paths))
}
