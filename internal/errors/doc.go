// Package errors provides the coded, actionable errors the pushmodel command
// prints when it cannot start or complete a call.
//
// Each error has a code (e.g. "E101") registered with a category, a short
// message and a longer explanation. Call sites add a detail, a hint and the
// wrapped cause:
//
//	err := errors.New("E101").
//	    WithDetail("line 3: unexpected '}'").
//	    WithSuggestion("Check that pushmodel.yaml is valid YAML").
//	    Wrap(cause)
//
//	errors.PrintError(err)
//	// ERROR E101: Invalid configuration file
//	//
//	//   line 3: unexpected '}'
//	//
//	//   Hint: Check that pushmodel.yaml is valid YAML
package errors
