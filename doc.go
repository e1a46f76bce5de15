// Package testable drives reactive, message-driven applications synchronously
// from tests.
//
// A host runtime normally owns the application's loop: it evaluates init,
// feeds messages through update, and hands the resulting commands to effect
// managers in the background. This package intercepts the runtime's bootstrap
// hook so that starting an application returns its raw init, update and
// subscriptions instead, then threads an immutable Context through each step.
//
//	func TestMain(m *testing.M) {
//	    testable.MustInstall()
//	    os.Exit(m.Run())
//	}
//
//	func TestCounter(t *testing.T) {
//	    c, err := testable.Start(Counter)
//	    require.NoError(t, err)
//	    c, err = c.Update(5)
//	    require.NoError(t, err)
//	    model, ok := c.Model().Value()
//	    ...
//	}
//
// Interception replaces a process-wide slot and is never undone, so a process
// that has called Install must not expect the real runtime afterwards. Run
// tests that need the real loop in a separate process.
//
// Commands and subscriptions are exposed as flat, ordered lists (see
// ExtractCmds and ExtractSubs). Task commands can be evaluated synchronously
// with PerformTask or fed back into the application with Context.RunTasks;
// everything else is a PortCommand for the test to inspect or simulate.
//
// Errors come in two kinds. Integration failures (ErrSetup,
// ErrMalformedTree, ErrMalformedTask) are returned immediately. Failures of
// the application itself, and failed checks, accumulate on the Context and
// surface through Context.Model, so a test can report all of them at once.
package testable
