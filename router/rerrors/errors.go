package rerrors

import "fmt"

var ErrComplexQuery = fmt.Errorf("too complex query to route")
var ErrMissingParameter = fmt.Errorf("parameter marker has no bound value")
