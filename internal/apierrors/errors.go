// Package apierrors defines the stable error tags returned by every service
// operation. The tag strings are part of the wire contract: the HTTP edge
// writes them verbatim into the response body.
package apierrors

// Error is a tagged service error. Operations return either their success
// payload or exactly one *Error; the edge recovers it with errors.AsType.
type Error struct {
	Tag string
}

func (e *Error) Error() string { return e.Tag }

// Authentication.
var (
	ErrInvalidUserToken            = &Error{"InvalidUserToken"}
	ErrInvalidAdminToken           = &Error{"InvalidAdminToken"}
	ErrInvalidAdminTokenOrNonAdmin = &Error{"InvalidAdminTokenOrNonAdminUser"}
	ErrInvalidToken                = &Error{"InvalidToken"}
)

// Scope and visibility.
var (
	ErrUserNotFoundInAdminsRoom        = &Error{"UserNotFoundInAdminsRoom"}
	ErrChannelNotFoundInUsersRoom      = &Error{"ChannelNotFoundInUsersRoom"}
	ErrUserIsNotMemberOfPrivateChannel = &Error{"UserIsNotMemberOfPrivateChannel"}
	ErrRoomNotFound                    = &Error{"RoomNotFound"}
	ErrChannelNotFound                 = &Error{"ChannelNotFound"}
	ErrUserNotFound                    = &Error{"UserNotFound"}
	ErrMessageNotFound                 = &Error{"MessageNotFound"}
	ErrAttachmentNotFound              = &Error{"AttachmentNotFound"}
	ErrChannelNotFoundOrNotPrivate     = &Error{"ChannelNotFoundOrNotPrivate"}
)

// Policy.
var (
	ErrUserIsNotAdminAndRoomIsAdminInviteOnly = &Error{"UserIsNotAdminAndRoomIsAdminInviteOnly"}
	ErrUserNotAuthorizedToDeleteThisMessage   = &Error{"UserNotAuthorizedToDeleteThisMessage"}
	ErrUserNotAuthorizedToEditThisMessage     = &Error{"UserNotAuthorizedToEditThisMessage"}
	ErrMessageCannotTargetBoth                = &Error{"MessageCannotTargetBothAChannelAndADirectUser"}
	ErrEitherChannelOrDirectUserRequired      = &Error{"EitherChannelIdOrDirectMessageUserIdMustBeProvided"}
	ErrDisplayNameAlreadyExists               = &Error{"DisplayNameAlreadyExistsInTheRoom"}
)

// Content.
var (
	ErrInvalidContentStructure           = &Error{"InvalidContentStructure"}
	ErrInvalidTextContent                = &Error{"InvalidTextContent"}
	ErrInvalidFacet                      = &Error{"InvalidFacet"}
	ErrInvalidEmbed                      = &Error{"InvalidEmbed"}
	ErrInvalidAttachmentIDs              = &Error{"InvalidAttachmentIDs"}
	ErrInvalidOrNonImageLogoAttachment   = &Error{"InvalidOrNonImageLogoAttachment"}
	ErrInvalidOrNonImageAvatarAttachment = &Error{"InvalidOrNonImageAvatarAttachment"}
	ErrInvalidFileType                   = &Error{"InvalidFileType"}
)

// Credentials.
var (
	ErrInvalidInviteCode            = &Error{"InvalidInviteCode"}
	ErrInvalidOrExpiredTransferCode = &Error{"InvalidOrExpiredTransferCode"}
	ErrNoValidTokens                = &Error{"NoValidTokens"}
)

// Generic operation failures. Returned when a storage-layer error aborts the
// enclosing mutation after rollback.
var (
	ErrCouldNotCreateRoomAndAdmin            = &Error{"CouldNotCreateRoomAndAdmin"}
	ErrCouldNotCreateInviteCode              = &Error{"CouldNotCreateInviteCode"}
	ErrCouldNotCreateUserFromInviteCode      = &Error{"CouldNotCreateUserFromInviteCode"}
	ErrCouldNotRemoveUser                    = &Error{"CouldNotRemoveUser"}
	ErrCouldNotCreateMessage                 = &Error{"CouldNotCreateMessage"}
	ErrCouldNotRemoveMessage                 = &Error{"CouldNotRemoveMessage"}
	ErrCouldNotEditMessage                   = &Error{"CouldNotEditMessage"}
	ErrCouldNotUpdateRoom                    = &Error{"CouldNotUpdateRoom"}
	ErrCouldNotUpdateUser                    = &Error{"CouldNotUpdateUser"}
	ErrCouldNotChangeUserRole                = &Error{"CouldNotChangeUserRole"}
	ErrCouldNotGetMessages                   = &Error{"CouldNotGetMessages"}
	ErrCouldNotGetUsers                      = &Error{"CouldNotGetUsers"}
	ErrCouldNotRetrieveUserDetails           = &Error{"CouldNotRetrieveUserDetails"}
	ErrCouldNotRetrieveChannels              = &Error{"CouldNotRetrieveChannels"}
	ErrCouldNotCreateChannel                 = &Error{"CouldNotCreateChannel"}
	ErrCouldNotRemoveChannel                 = &Error{"CouldNotRemoveChannel"}
	ErrCouldNotUpdateChannel                 = &Error{"CouldNotUpdateChannel"}
	ErrCouldNotAddUserToChannel              = &Error{"CouldNotAddUserToChannel"}
	ErrCouldNotRemoveUserFromChannel         = &Error{"CouldNotRemoveUserFromChannel"}
	ErrCouldNotCreateTransferCode            = &Error{"CouldNotCreateTransferCode"}
	ErrCouldNotFetchUserDataFromTransferCode = &Error{"CouldNotFetchUserDataFromTransferCode"}
	ErrCouldNotUploadAttachment              = &Error{"CouldNotUploadAttachment"}
	ErrCouldNotRemoveAttachment              = &Error{"CouldNotRemoveAttachment"}
	ErrCouldNotCreateTables                  = &Error{"CouldNotCreateTables"}
)

var (
	ErrInvalidParameters  = &Error{"InvalidParameters"}
	ErrUnknownServerError = &Error{"UnknownServerError"}
)
