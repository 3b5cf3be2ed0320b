package fanout

import (
	"notification-workers/internal/models"
	"notification-workers/internal/store"
)

func storeParams(typ models.NotificationType) store.CreateNotificationParams {
	return store.CreateNotificationParams{Type: typ, Content: "content", EntityID: int64Ptr(1)}
}

func storeParamsFor(typ models.NotificationType, entityID int64) store.CreateNotificationParams {
	return store.CreateNotificationParams{Type: typ, Content: "content", EntityID: int64Ptr(entityID)}
}
