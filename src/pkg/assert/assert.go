package assert

import "fmt"

func Assert(cond bool, msgAndArgs ...any) {
	if cond {
		return
	}

	if len(msgAndArgs) == 0 {
		panic("assertion failed")
	}

	format, ok := msgAndArgs[0].(string)
	if !ok {
		panic(fmt.Sprint(msgAndArgs...))
	}

	panic(fmt.Sprintf("assertion failed: "+format, msgAndArgs[1:]...))
}
