package sds011

// Checksum 计算 b[start..end]（含两端）的累加和，byte溢出自动丢弃高位
func Checksum(b []byte, start, end int) byte {
	var sum byte
	for i := start; i <= end; i++ {
		sum += b[i]
	}
	return sum
}
