// Package ghci drives a long-lived ghci process and exposes a synchronous
// request/response API: submit a snippet, get back what the interpreter
// wrote to stdout and stderr while evaluating it.
//
// # Protocol
//
// At startup the session replaces ghci's prompt with [Marker] and clears the
// continuation prompt. Every snippet is then sent as a multi-line block:
//
//	:{
//	<snippet>
//	:}
//
// and the response is everything read from stdout up to the next
// occurrence of the marker at the tail of the output, plus everything read
// from stderr meanwhile.
//
// # Main Types
//
//   - [Session]: the live handle (New, Eval, EvalContext, SetTimeout, Close)
//   - [EvalOutput]: stdout and stderr captured for one evaluation
//   - [Config]: executable, arguments, environment, timeout and logger
//   - [Error]: the error union, one of [KindTimeout], [KindIO], [KindPoll]
//
// # Timeouts
//
// The session timeout bounds each wait for output, not the evaluation as a
// whole. When a wait expires the session moves to [StateTimedOut]: ghci may
// still be running the snippet and its output would be attributed to the
// next call, so every later Eval fails and the session must be closed.
//
// # Concurrency
//
// The package starts no goroutines. The only blocking point is poll(2) on
// the two output descriptors. Methods may be called from several
// goroutines, but calls are serialized; Close waits for an in-flight Eval.
//
// # Lifecycle
//
// Close kills the interpreter and reports an error if it had already
// exited. A Session that becomes unreachable without Close has its process
// killed by a runtime cleanup on a best-effort basis.
//
// # Basic Usage
//
//	sess, err := ghci.New(ghci.Config{Timeout: 5 * time.Second})
//	if err != nil {
//	    return err
//	}
//	defer sess.Close()
//
//	out, err := sess.Eval(`putStrLn "Hello world"`)
//	if err != nil {
//	    return err
//	}
//	fmt.Print(out.Stdout) // Hello world
//
// The package is Unix-only.
package ghci
