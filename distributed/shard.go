package distributed

// ShardID maps a (worker rank, local GPU index) pair to its dataset shard.
// The mapping is injective over rank in [0, numWorkers) and gpuIndex in
// [0, numGPUs): every shard is read by exactly one (rank, GPU) pair.
func ShardID(rank, gpuIndex, numGPUs int) int {
	return gpuIndex + rank*numGPUs
}

// NumShards is the total shard count across all workers and their GPUs.
func NumShards(numWorkers, numGPUs int) int {
	return numWorkers * numGPUs
}

// SeparateValShard is the shard assignment used when every worker validates
// on the whole set independently.
func SeparateValShard() (shardID, numShards int) {
	return 0, 1
}

// SplitSize divides total examples across numWorkers ranks. The first
// total mod numWorkers ranks absorb one extra example each, so the per-rank
// sizes always sum to total.
func SplitSize(total, rank, numWorkers int) int {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	size := total / numWorkers
	if rank < total%numWorkers {
		size++
	}
	return size
}
