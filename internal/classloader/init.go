package classloader

// BeginInit attempts to transition c into StateInitializing.
//
//   - StateReady: initialization already finished; caller should do
//     nothing further.
//   - StateErrored: a previous <clinit> attempt failed; per JVM spec
//     every future attempt must fail the same way (returns the
//     original error; the engine passes it on unchanged, not wrapped).
//   - StateInitializing: this engine interprets one thread at a time,
//     so "already initializing" only happens via <clinit> re-entering
//     itself (a static initializer that touches its own class). The
//     JVM spec lets the initializing thread proceed without blocking;
//     proceed=false here tells the caller to treat it as already done
//     for this nested call.
//   - StateUninitialized: proceed=true, caller must run <clinit> and
//     call CompleteInit with the result.
func (c *Class) BeginInit() (proceed bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.initState {
	case StateReady:
		return false, nil
	case StateErrored:
		return false, c.initErr
	case StateInitializing:
		return false, nil
	default:
		c.initState = StateInitializing
		return true, nil
	}
}

// CompleteInit records the outcome of a <clinit> run started by a
// BeginInit that returned proceed=true.
func (c *Class) CompleteInit(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.initState = StateErrored
		c.initErr = err
		return
	}
	c.initState = StateReady
}

// Initialized reports whether <clinit> has already completed
// successfully, without taking any action.
func (c *Class) Initialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initState == StateReady
}

// EnsureInitialized drives the full <clinit> ordering for c: its
// superclass chain first, then c itself. runClinit actually executes a
// class's <clinit> method — only the interpreter (internal/vm) can do
// that, so it's supplied by the caller rather than owned here.
func EnsureInitialized(c *Class, runClinit func(*Class) error) error {
	if c.Super != nil {
		if err := EnsureInitialized(c.Super, runClinit); err != nil {
			return err
		}
	}

	proceed, err := c.BeginInit()
	if err != nil || !proceed {
		return err
	}

	err = runClinit(c)
	c.CompleteInit(err)
	return err
}
