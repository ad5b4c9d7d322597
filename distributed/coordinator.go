package distributed

import (
	"fmt"
	"os"
	"strconv"
)

// Coordinator reports this process's position in a cooperating group of
// training workers.
type Coordinator interface {
	Rank() int
	NumWorkers() int
	LocalRank() int
}

// Single is the degenerate coordinator for one-process runs.
type Single struct{}

func (Single) Rank() int       { return 0 }
func (Single) NumWorkers() int { return 1 }
func (Single) LocalRank() int  { return 0 }

// Environment variables published by OpenMPI-style launchers.
const (
	envWorldRank = `OMPI_COMM_WORLD_RANK`
	envWorldSize = `OMPI_COMM_WORLD_SIZE`
	envLocalRank = `OMPI_COMM_WORLD_LOCAL_RANK`
)

// EnvCoordinator derives rank and size from the launcher environment.
type EnvCoordinator struct {
	rank      int
	size      int
	localRank int
}

// NewEnvCoordinator reads the OpenMPI environment. It fails when the rank or
// size variables are absent or malformed; local rank falls back to the world
// rank for single-host runs.
func NewEnvCoordinator() (*EnvCoordinator, error) {
	rank, err := intFromEnv(envWorldRank)
	if err != nil {
		return nil, err
	}
	size, err := intFromEnv(envWorldSize)
	if err != nil {
		return nil, err
	}
	local := rank
	if v, err := intFromEnv(envLocalRank); err == nil {
		local = v
	}
	return &EnvCoordinator{rank: rank, size: size, localRank: local}, nil
}

func intFromEnv(key string) (int, error) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return 0, fmt.Errorf("distributed: %s not set", key)
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("distributed: bad %s=%q: %w", key, val, err)
	}
	return n, nil
}

func (c *EnvCoordinator) Rank() int       { return c.rank }
func (c *EnvCoordinator) NumWorkers() int { return c.size }
func (c *EnvCoordinator) LocalRank() int  { return c.localRank }
