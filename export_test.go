package taskstatus

// ChecksEnabled lets the external tests skip misuse checks under taskstatus_unchecked.
const ChecksEnabled = checksEnabled
