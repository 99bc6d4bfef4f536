package enums

// NotificationType buckets in-app notifications for filtering on the client.
type NotificationType string

const (
	NotificationTypeWelcome          NotificationType = "welcome"
	NotificationTypeContentProcessed NotificationType = "content_processed"
	NotificationTypeContentFailed    NotificationType = "content_failed"
	NotificationTypeCourseUpdate     NotificationType = "course_update"
	NotificationTypeAchievement      NotificationType = "achievement"
)

func (n NotificationType) String() string {
	return string(n)
}
