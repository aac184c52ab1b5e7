package appcontext

// Env tells the config layer which entrypoint constructed the app. The calc
// worker runs inside the server process, so there is no separate worker env.
type Env int

const (
	EnvServer Env = iota
	EnvCLI
)

type Ctx struct {
	Env Env
}

func Declare(env Env) Ctx {
	return Ctx{Env: env}
}
