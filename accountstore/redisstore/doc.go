// Package redisstore implements account.Store on Redis.
//
// Each profile is one binary-encoded string key. Save is a WATCH/MULTI
// compare-and-set on the stored Version, so two processes racing on the
// same account cannot both commit.
package redisstore
