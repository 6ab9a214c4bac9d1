package bidding

// UpdateAttemptsForTest exposes updateAttempts to external test packages.
const UpdateAttemptsForTest = updateAttempts
