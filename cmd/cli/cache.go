package main

import "github.com/waveprint/mixid/internal/cache"

func newCache() (*cache.PostingCache, error) {
	return cache.NewPostingCache(env.RedisHost, env.RedisPort, env.RedisPass)
}
