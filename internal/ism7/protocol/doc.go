// Package protocol defines the ISM7 message payloads and their XML and
// keep-alive encodings.
//
// Requests:
//
//	<direct-logon-request><passwd>secret</passwd></direct-logon-request>
//	<read-systemconfig-request sid="..."/>
//	<tbreq bn="1" gw="1" ae="false" ty="pull"><ird se="" ba="0x08" in="3"/></tbreq>
//
// Responses are decoded by [Decode] into a closed set of [Message] kinds:
// [LogonResponse], [SystemConfigResponse], [BundleResponse] and
// [KeepAliveMessage]. Register bytes travel as "0xNN" strings in the dl
// and dh attributes.
package protocol
