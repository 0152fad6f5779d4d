package cache

import "time"

var timeNow = time.Now

func EpochTime() int64 {
	return timeNow().Unix()
}

func SetTimeNowFn(f func() time.Time) {
	timeNow = f
}

func RestoreTimeNow() {
	timeNow = time.Now
}
