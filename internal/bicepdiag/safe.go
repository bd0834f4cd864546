package bicepdiag

// Safe runs f and converts both its returned error and any panic it
// raises into a classified *Error. The dispatcher uses this around each
// per-reference pull so that one module's unexpected failure (including a
// panic inside a registry client implementation supplied by an embedder)
// can never take down the whole batch restore.
func Safe(f func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = New(Unhandled, e, "")
			} else {
				err = New(Unhandled, nil, "%v", r)
			}
		}
	}()
	if err = f(); err != nil {
		err = Wrap(err)
	}
	return err
}

// SafeValue is the value-returning variant of Safe.
func SafeValue[T any](f func() (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = New(Unhandled, e, "")
			} else {
				err = New(Unhandled, nil, "%v", r)
			}
		}
	}()
	result, err = f()
	if err != nil {
		err = Wrap(err)
	}
	return result, err
}
