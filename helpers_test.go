package cinch

import "context"

func ctxBG() context.Context { return context.Background() }
