//go:build taskstatus_unchecked

package taskstatus

const checksEnabled = false
