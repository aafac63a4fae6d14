package handlers_test

// Record ids used across the handler tests. Handlers reject anything that
// is not a UUID, so fixtures use real ones.
const (
	studentID    = "0b8f3c6e-5d21-4a7f-9c3e-1f2a4b6d8e01"
	student2ID   = "0b8f3c6e-5d21-4a7f-9c3e-1f2a4b6d8e02"
	student3ID   = "0b8f3c6e-5d21-4a7f-9c3e-1f2a4b6d8e03"
	missingID    = "0b8f3c6e-5d21-4a7f-9c3e-1f2a4b6d8eff"
	classID      = "7c2e9a41-3b5d-4e68-8f1a-6d4c2b9e0a11"
	otherClassID = "7c2e9a41-3b5d-4e68-8f1a-6d4c2b9e0a16"
	teacherID    = "d4a1b7c9-2e3f-4a5b-8c6d-9e0f1a2b3c41"
	adminID      = "e5b2c8d0-3f4a-4b6c-9d7e-0f1a2b3c4d51"
	recordID     = "a9c3e5f7-1b2d-4c6e-8f0a-2b4d6f8a0c91"
)
